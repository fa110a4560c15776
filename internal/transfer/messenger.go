package transfer

import (
	"context"

	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

// MessageRef points at a message the bot sent and may edit later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is an inline button. Exactly one of Data and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Messenger is the chat side of a transfer: status messages and the source
// download.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, kb Keyboard) error
	// DownloadTo writes the file to localPath. Returning false from
	// onProgress aborts the download with common.ErrCancelled.
	DownloadTo(ctx context.Context, src media.Source, localPath string, onProgress func(current, total int64) bool) error
}

// CredentialResolver picks the storage account for a user's uploads.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID int64) (models.Credential, error)
}

// CancelData is the callback payload of a job's cancel button.
func CancelData(jobID string) string { return "cancel:" + jobID }

func cancelKeyboard(jobID string) Keyboard {
	return Keyboard{{{Text: "Cancel", Data: CancelData(jobID)}}}
}
