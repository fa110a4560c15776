package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/megarelay/internal/dbx"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.SeenUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, username, first_seen FROM seen_users
		 ORDER BY first_seen, user_id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []models.SeenUser
	for rows.Next() {
		var u models.SeenUser
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstSeen); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *PostgresRepository) Add(ctx context.Context, u models.SeenUser) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO seen_users (user_id, username, first_seen)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		u.ID, u.Username, u.FirstSeen)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM seen_users`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
