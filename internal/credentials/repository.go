package credentials

import (
	"context"

	"github.com/dmitrijs2005/megarelay/internal/models"
)

// Repository persists the whole credential document. Load is called once at
// startup, Save after every mutation.
type Repository interface {
	Load(ctx context.Context) (models.Document, error)
	Save(ctx context.Context, doc models.Document) error
}
