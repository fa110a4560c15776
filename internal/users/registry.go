// Package users records who has used the bot, for the admin panel and the
// optional log channel.
package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

// Registry caches the seen users in memory and writes through to its
// repository.
type Registry struct {
	mu    sync.Mutex
	seen  map[int64]models.SeenUser
	order []int64
	repo  Repository
	now   func() time.Time
	log   logging.Logger
}

func Open(ctx context.Context, repo Repository, log logging.Logger) (*Registry, error) {
	list, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	r := &Registry{
		seen: make(map[int64]models.SeenUser, len(list)),
		repo: repo,
		now:  time.Now,
		log:  log,
	}
	for _, u := range list {
		if _, ok := r.seen[u.ID]; ok {
			continue
		}
		r.seen[u.ID] = u
		r.order = append(r.order, u.ID)
	}
	return r, nil
}

// Record registers the user and reports whether they were new.
func (r *Registry) Record(ctx context.Context, id int64, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[id]; ok {
		return false, nil
	}

	u := models.SeenUser{ID: id, Username: username, FirstSeen: r.now().UTC()}
	if err := r.repo.Add(ctx, u); err != nil {
		return false, fmt.Errorf("record user: %w", err)
	}
	r.seen[id] = u
	r.order = append(r.order, id)

	r.log.Info(ctx, "new bot user", "user_id", id, "username", username)
	return true, nil
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// List returns the users in the order they were first seen.
func (r *Registry) List() []models.SeenUser {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.SeenUser, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.seen[id])
	}
	return out
}

func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	r.seen = make(map[int64]models.SeenUser)
	r.order = nil
	return nil
}
