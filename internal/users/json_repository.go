package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dmitrijs2005/megarelay/internal/filex"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

// JSONRepository stores seen users as a JSON array.
type JSONRepository struct {
	mu   sync.Mutex
	path string
}

func NewJSONRepository(path string) *JSONRepository {
	return &JSONRepository{path: path}
}

func (r *JSONRepository) List(ctx context.Context) ([]models.SeenUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *JSONRepository) Add(ctx context.Context, u models.SeenUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.read()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.ID == u.ID {
			return nil
		}
	}
	return r.write(append(list, u))
}

func (r *JSONRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write([]models.SeenUser{})
}

func (r *JSONRepository) read() ([]models.SeenUser, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var list []models.SeenUser
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return list, nil
}

func (r *JSONRepository) write(list []models.SeenUser) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return filex.WriteFileAtomic(r.path, data, 0o600)
}
