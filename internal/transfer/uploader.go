package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/progress"
	"github.com/dmitrijs2005/megarelay/internal/storage"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second

	defaultPollInterval     = time.Second
	defaultLivenessInterval = 10 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Uploader uploads a local file with a fresh provider session per attempt.
type Uploader struct {
	provider     storage.Provider
	maxRetries   int
	retryDelay   time.Duration
	pollInterval time.Duration
	liveness     time.Duration
	sleep        SleepFunc
	log          logging.Logger
}

func NewUploader(provider storage.Provider, maxRetries int, retryDelay time.Duration, sleep SleepFunc, log logging.Logger) *Uploader {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if retryDelay < 0 {
		retryDelay = DefaultRetryDelay
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Uploader{
		provider:     provider,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
		pollInterval: defaultPollInterval,
		liveness:     defaultLivenessInterval,
		sleep:        sleep,
		log:          log,
	}
}

// Upload tries up to maxRetries times, waiting retryDelay between attempts,
// and returns a share link. Once attempts are exhausted the error wraps
// common.ErrTransferFailed and the last attempt's error. A cancel requested
// on job aborts the running attempt at its next poll tick and stops further
// attempts with common.ErrCancelled.
func (u *Uploader) Upload(ctx context.Context, job *Job, path, name string, cred models.Credential, rep *progress.Reporter) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", common.ErrTransferFailed, path, err)
	}
	total := info.Size()

	var lastErr error
	for attempt := 1; attempt <= u.maxRetries; attempt++ {
		if attempt > 1 {
			if err := u.sleep(ctx, u.retryDelay); err != nil {
				return "", err
			}
		}
		if job.CancelRequested() {
			return "", common.ErrCancelled
		}

		rep.Restart()
		link, err := u.attempt(ctx, job, path, name, total, cred, rep)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, common.ErrCancelled) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		u.log.Warn(ctx, "upload attempt failed",
			"job_id", job.ID, "attempt", attempt, "max_attempts", u.maxRetries, "error", err)
	}

	return "", fmt.Errorf("%w after %d attempts: %w", common.ErrTransferFailed, u.maxRetries, lastErr)
}

type uploadResult struct {
	handle storage.Handle
	err    error
}

func (u *Uploader) attempt(ctx context.Context, job *Job, path, name string, total int64, cred models.Credential, rep *progress.Reporter) (string, error) {
	sess, err := u.provider.Authenticate(ctx, cred.Email, cred.Secret)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}

	attemptCtx, abort := context.WithCancel(ctx)
	defer abort()

	var sent atomic.Int64
	done := make(chan uploadResult, 1)
	go func() {
		h, err := u.provider.UploadFile(attemptCtx, sess, path, name, func(n int64) { sent.Store(n) })
		done <- uploadResult{handle: h, err: err}
	}()

	ticker := time.NewTicker(u.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			if res.err != nil {
				return "", fmt.Errorf("upload: %w", res.err)
			}
			link, err := u.provider.GetShareLink(ctx, sess, res.handle)
			if err != nil {
				return "", fmt.Errorf("share link: %w", err)
			}
			return link, nil

		case <-ticker.C:
			if job.CancelRequested() {
				abort()
				<-done
				return "", common.ErrCancelled
			}

			cur := sent.Load()
			emitted, err := rep.Report(ctx, cur, total)
			if !emitted && rep.SinceLastEmit() >= u.liveness {
				err = rep.Force(ctx, cur, total)
			}
			if err != nil {
				u.log.Debug(ctx, "progress update failed", "error", err)
			}
		}
	}
}
