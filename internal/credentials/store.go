// Package credentials keeps every user's storage-account credentials and the
// account currently selected for uploads.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/storage"
)

// Authenticator checks a credential against the storage provider.
type Authenticator interface {
	Authenticate(ctx context.Context, email, secret string) (storage.Session, error)
}

// Store is safe for concurrent use. One mutex covers the in-memory document
// and its persistence; provider calls happen outside of it.
type Store struct {
	mu   sync.Mutex
	doc  models.Document
	repo Repository
	auth Authenticator
	log  logging.Logger
}

// Open loads the document from repo and returns a ready Store.
func Open(ctx context.Context, repo Repository, auth Authenticator, log logging.Logger) (*Store, error) {
	doc, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if doc.Accounts == nil || doc.Selected == nil {
		fixed := models.NewDocument()
		maps.Copy(fixed.Accounts, doc.Accounts)
		maps.Copy(fixed.Selected, doc.Selected)
		doc = fixed
	}
	return &Store{doc: doc, repo: repo, auth: auth, log: log}, nil
}

// update applies fn to a copy of the document, persists the copy and only
// then makes it current. Callers must hold s.mu.
func (s *Store) update(ctx context.Context, fn func(doc *models.Document) error) error {
	next := s.doc.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	s.doc = next
	return nil
}

func (s *Store) check(ctx context.Context, email, secret string) (models.CredentialStatus, error) {
	_, err := s.auth.Authenticate(ctx, email, secret)
	if err == nil {
		return models.StatusValid, nil
	}
	if !errors.Is(err, common.ErrAuthenticationFailed) {
		err = fmt.Errorf("%w: %v", common.ErrAuthenticationFailed, err)
	}
	return models.StatusInvalid, err
}

// Add authenticates the credential and appends it with the resulting status.
// An authentication failure is still stored; the returned error then wraps
// common.ErrAuthenticationFailed and the credential carries the reason.
func (s *Store) Add(ctx context.Context, userID int64, email, secret string) (models.Credential, error) {
	status, authErr := s.check(ctx, email, secret)

	c := models.Credential{Email: email, Secret: secret, Status: status}
	if authErr != nil {
		c.LastError = authErr.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.update(ctx, func(doc *models.Document) error {
		doc.Accounts[userID] = append(doc.Accounts[userID], c)
		return nil
	})
	if err != nil {
		return models.Credential{}, err
	}

	s.log.Info(ctx, "credential added", "user_id", userID, "status", string(status))
	return c, authErr
}

// List returns a copy of the user's credentials in insertion order.
func (s *Store) List(ctx context.Context, userID int64) []models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.doc.Accounts[userID])
}

// Select makes the credential at index the one used for uploads.
func (s *Store) Select(ctx context.Context, userID int64, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, func(doc *models.Document) error {
		if index < 0 || index >= len(doc.Accounts[userID]) {
			return common.ErrOutOfRange
		}
		doc.Selected[userID] = index
		return nil
	})
}

// Remove deletes the credential at index. Removing the selected credential
// clears the selection; removing one before it keeps the selection on the
// same credential.
func (s *Store) Remove(ctx context.Context, userID int64, index int) (models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed models.Credential
	err := s.update(ctx, func(doc *models.Document) error {
		creds := doc.Accounts[userID]
		if index < 0 || index >= len(creds) {
			return common.ErrOutOfRange
		}
		removed = creds[index]

		creds = slices.Delete(creds, index, index+1)
		if len(creds) == 0 {
			delete(doc.Accounts, userID)
		} else {
			doc.Accounts[userID] = creds
		}

		if sel, ok := doc.Selected[userID]; ok {
			switch {
			case sel == index:
				delete(doc.Selected, userID)
			case sel > index:
				doc.Selected[userID] = sel - 1
			}
		}
		return nil
	})
	if err != nil {
		return models.Credential{}, err
	}
	return removed, nil
}

// Validate re-authenticates the credential at index and records the outcome.
// If the entry changed while the provider was being asked, nothing is
// recorded and common.ErrNotFound is returned.
func (s *Store) Validate(ctx context.Context, userID int64, index int) (models.Credential, error) {
	s.mu.Lock()
	creds := s.doc.Accounts[userID]
	if index < 0 || index >= len(creds) {
		s.mu.Unlock()
		return models.Credential{}, common.ErrOutOfRange
	}
	c := creds[index]
	s.mu.Unlock()

	status, authErr := s.check(ctx, c.Email, c.Secret)

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated models.Credential
	err := s.update(ctx, func(doc *models.Document) error {
		creds := doc.Accounts[userID]
		if index >= len(creds) || creds[index].Email != c.Email || creds[index].Secret != c.Secret {
			return fmt.Errorf("credential changed during validation: %w", common.ErrNotFound)
		}
		creds[index].Status = status
		creds[index].LastError = ""
		if authErr != nil {
			creds[index].LastError = authErr.Error()
		}
		updated = creds[index]
		return nil
	})
	if err != nil {
		return models.Credential{}, err
	}
	return updated, authErr
}

// Resolve returns the credential uploads should use: the selected one,
// otherwise the first one, otherwise common.ErrNotConfigured.
func (s *Store) Resolve(ctx context.Context, userID int64) (models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.doc.Accounts[userID]
	if len(creds) == 0 {
		return models.Credential{}, common.ErrNotConfigured
	}
	if sel, ok := s.doc.Selected[userID]; ok && sel >= 0 && sel < len(creds) {
		return creds[sel], nil
	}
	return creds[0], nil
}

// Selected reports the explicitly selected credential, if any.
func (s *Store) Selected(ctx context.Context, userID int64) (models.Credential, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel, ok := s.doc.Selected[userID]
	creds := s.doc.Accounts[userID]
	if !ok || sel < 0 || sel >= len(creds) {
		return models.Credential{}, 0, false
	}
	return creds[sel], sel, true
}

// Clear removes all of the user's credentials and the selection.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, func(doc *models.Document) error {
		delete(doc.Accounts, userID)
		delete(doc.Selected, userID)
		return nil
	})
}

// Users returns how many users have at least one credential.
func (s *Store) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Accounts)
}

func sortedUsers[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
