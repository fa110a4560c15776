package credentials

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/megarelay/internal/cryptox"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

// SealedRepository encrypts secrets before they reach the wrapped repository
// and decrypts them on load. Plaintext secrets written by an older version
// are read as-is and sealed on the next save.
type SealedRepository struct {
	inner  Repository
	sealer *cryptox.Sealer
}

func NewSealedRepository(inner Repository, sealer *cryptox.Sealer) *SealedRepository {
	return &SealedRepository{inner: inner, sealer: sealer}
}

func (r *SealedRepository) Load(ctx context.Context) (models.Document, error) {
	doc, err := r.inner.Load(ctx)
	if err != nil {
		return models.Document{}, err
	}
	for userID, creds := range doc.Accounts {
		for i := range creds {
			plain, err := r.sealer.Open(creds[i].Secret)
			if err != nil {
				return models.Document{}, fmt.Errorf("open secret of user %d: %w", userID, err)
			}
			creds[i].Secret = plain
		}
	}
	return doc, nil
}

func (r *SealedRepository) Save(ctx context.Context, doc models.Document) error {
	out := doc.Clone()
	for userID, creds := range out.Accounts {
		for i := range creds {
			sealed, err := r.sealer.Seal(creds[i].Secret)
			if err != nil {
				return fmt.Errorf("seal secret of user %d: %w", userID, err)
			}
			creds[i].Secret = sealed
		}
	}
	return r.inner.Save(ctx, out)
}
