package credentials

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/megarelay/internal/dbx"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

// PostgresRepository stores credentials in the accounts and selections
// tables. Save replaces both tables in one transaction.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Load(ctx context.Context) (models.Document, error) {
	doc := models.NewDocument()

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, email, secret, status, last_error FROM accounts
		 ORDER BY user_id, position`)
	if err != nil {
		return models.Document{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int64
			c      models.Credential
			status string
		)
		if err := rows.Scan(&userID, &c.Email, &c.Secret, &status, &c.LastError); err != nil {
			return models.Document{}, fmt.Errorf("db error: %w", err)
		}
		c.Status = models.CredentialStatus(status)
		doc.Accounts[userID] = append(doc.Accounts[userID], c)
	}
	if err := rows.Err(); err != nil {
		return models.Document{}, fmt.Errorf("db error: %w", err)
	}

	sel, err := r.db.QueryContext(ctx, `SELECT user_id, position FROM selections`)
	if err != nil {
		return models.Document{}, fmt.Errorf("db error: %w", err)
	}
	defer sel.Close()

	for sel.Next() {
		var userID int64
		var pos int
		if err := sel.Scan(&userID, &pos); err != nil {
			return models.Document{}, fmt.Errorf("db error: %w", err)
		}
		doc.Selected[userID] = pos
	}
	if err := sel.Err(); err != nil {
		return models.Document{}, fmt.Errorf("db error: %w", err)
	}

	return doc, nil
}

func (r *PostgresRepository) Save(ctx context.Context, doc models.Document) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM selections`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		for _, userID := range sortedUsers(doc.Accounts) {
			for pos, c := range doc.Accounts[userID] {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO accounts (user_id, position, email, secret, status, last_error)
					 VALUES ($1, $2, $3, $4, $5, $6)`,
					userID, pos, c.Email, c.Secret, string(c.Status), c.LastError)
				if err != nil {
					return fmt.Errorf("db error: %w", err)
				}
			}
		}

		for _, userID := range sortedUsers(doc.Selected) {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO selections (user_id, position) VALUES ($1, $2)`,
				userID, doc.Selected[userID])
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}
