// Package transfer runs the per-user download/upload pipeline: jobs are
// queued per user, drained in batches by one goroutine per user and
// uploaded with retries to the user's selected storage account.
package transfer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/media"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusUploading   Status = "uploading"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// JobID derives the job id from the message that carried the file.
func JobID(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// Job is one transfer. Only the dispatcher draining the owning user's queue
// changes its status; the cancel flag may be set from any goroutine.
type Job struct {
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Source    media.Source
	SizeHint  int64
	CreatedAt time.Time

	cancel atomic.Bool

	mu         sync.Mutex
	status     Status
	account    string
	startedAt  time.Time
	finishedAt time.Time
	link       string
	err        error
}

func newJob(req Request, now time.Time) *Job {
	size := req.SizeHint
	if size == 0 && req.Source != nil {
		size = req.Source.SizeHint()
	}
	return &Job{
		ID:        JobID(req.ChatID, req.MessageID),
		UserID:    req.UserID,
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		Source:    req.Source,
		SizeHint:  size,
		CreatedAt: now,
		status:    StatusQueued,
	}
}

// RequestCancel asks the dispatcher to stop the job at the next check.
func (j *Job) RequestCancel() { j.cancel.Store(true) }

func (j *Job) CancelRequested() bool { return j.cancel.Load() }

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) begin(account string, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusDownloading
	j.account = account
	j.startedAt = now
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

func (j *Job) finish(s Status, link string, err error, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
	j.link = link
	j.err = err
	j.finishedAt = now
}

// Snapshot is a point-in-time copy of a Job, safe to hand out.
type Snapshot struct {
	ID              string    `json:"id"`
	UserID          int64     `json:"user_id"`
	ChatID          int64     `json:"chat_id"`
	FileName        string    `json:"file_name"`
	SizeHint        int64     `json:"size_hint"`
	Status          Status    `json:"status"`
	Account         string    `json:"account,omitempty"`
	CancelRequested bool      `json:"cancel_requested"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
	Link            string    `json:"link,omitempty"`
	Error           string    `json:"error,omitempty"`
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Snapshot{
		ID:              j.ID,
		UserID:          j.UserID,
		ChatID:          j.ChatID,
		SizeHint:        j.SizeHint,
		Status:          j.status,
		Account:         j.account,
		CancelRequested: j.cancel.Load(),
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.startedAt,
		FinishedAt:      j.finishedAt,
		Link:            j.link,
	}
	if j.Source != nil {
		s.FileName = media.UploadName(j.Source)
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}
