// Package storage is the boundary to the cloud-storage provider: log in with
// a user's credential, upload a local file and hand out a share link.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is an authenticated connection to one storage account. Sessions
// are created per upload attempt and never reused.
type Session interface {
	Account() string
}

// Handle identifies an uploaded object.
type Handle struct {
	Key  string
	Size int64
}

// ProgressFunc receives the number of bytes sent so far.
type ProgressFunc func(sent int64)

// Provider is implemented by storage backends.
type Provider interface {
	Authenticate(ctx context.Context, email, secret string) (Session, error)
	UploadFile(ctx context.Context, s Session, localPath, name string, onProgress ProgressFunc) (Handle, error)
	GetShareLink(ctx context.Context, s Session, h Handle) (string, error)
}

// ObjectKey returns a collision-free key for name under a dated prefix.
func ObjectKey(now time.Time, name string) string {
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s/%s", now.Year(), now.Month(), now.Day(), uuid.New(), name)
}
