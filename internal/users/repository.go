package users

import (
	"context"

	"github.com/dmitrijs2005/megarelay/internal/models"
)

type Repository interface {
	List(ctx context.Context) ([]models.SeenUser, error)
	Add(ctx context.Context, u models.SeenUser) error
	Clear(ctx context.Context) error
}
