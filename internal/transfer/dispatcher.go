package transfer

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/progress"
)

// dispatch drains one user's queue batch by batch and exits when it is
// empty. The running flag is cleared under the same lock Enqueue takes, so
// a job enqueued concurrently either lands in the next batch or starts a
// new dispatcher.
func (o *Orchestrator) dispatch(userID int64) {
	defer o.wg.Done()
	log := o.log.With("user_id", userID)

	for {
		batch := o.popBatch(userID)
		if len(batch) == 0 {
			return
		}

		log.Debug(o.ctx, "batch started", "size", len(batch))
		o.runBatch(userID, batch)

		if o.hasQueued(userID) && o.opts.BatchCooldown > 0 {
			log.Debug(o.ctx, "batch cooldown", "duration", o.opts.BatchCooldown)
			_ = o.opts.Sleep(o.ctx, o.opts.BatchCooldown)
		}
	}
}

// popBatch moves up to BatchSize jobs from the queue to the active registry.
// After shutdown the remaining queue is cancelled instead.
func (o *Orchestrator) popBatch(userID int64) []*Job {
	o.mu.Lock()
	defer o.mu.Unlock()

	q := o.queues[userID]
	if q == nil {
		return nil
	}

	if o.ctx.Err() != nil {
		for _, job := range q.jobs {
			delete(o.pending, job.ID)
			job.finish(StatusCancelled, "", common.ErrShuttingDown, o.opts.Now())
			o.history.add(job.Snapshot())
			o.cancelled.Add(1)
		}
		q.jobs = nil
	}

	var batch []*Job
	for len(batch) == 0 && len(q.jobs) > 0 {
		n := min(o.opts.BatchSize, len(q.jobs))
		for _, job := range q.jobs[:n] {
			delete(o.pending, job.ID)
			if err := o.active.Add(job); err != nil {
				o.rejectLocked(job, err)
				continue
			}
			batch = append(batch, job)
		}
		q.jobs = q.jobs[n:]
	}

	if len(batch) == 0 {
		q.running = false
		delete(o.queues, userID)
		return nil
	}
	return batch
}

// rejectLocked fails a popped job that could not be registered as active.
// Without the registry entry it could not be cancelled, so it never runs.
// Callers must hold o.mu.
func (o *Orchestrator) rejectLocked(job *Job, err error) {
	o.log.Error(o.ctx, "job not registered, dropping it", "job_id", job.ID, "user_id", job.UserID, "error", err)
	job.finish(StatusFailed, "", err, o.opts.Now())
	o.history.add(job.Snapshot())
	o.failed.Add(1)
}

func (o *Orchestrator) hasQueued(userID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queues[userID]
	return q != nil && len(q.jobs) > 0
}

// runBatch resolves the credential once and uses it for the whole batch.
func (o *Orchestrator) runBatch(userID int64, batch []*Job) {
	cred, err := o.creds.Resolve(o.ctx, userID)
	if err != nil {
		text := msgNotConfigured
		if !errors.Is(err, common.ErrNotConfigured) {
			text = msgDownloadFailed(err)
		}
		for _, job := range batch {
			o.complete(job, StatusFailed, "", err)
			if _, serr := o.msg.SendText(o.ctx, job.ChatID, text, nil); serr != nil {
				o.log.Warn(o.ctx, "notify failed", "job_id", job.ID, "error", serr)
			}
		}
		o.log.Warn(o.ctx, "batch failed", "user_id", userID, "jobs", len(batch), "error", err)
		return
	}

	for _, job := range batch {
		o.process(job, cred)
	}
}

// process runs one job to a terminal state. The temp file and the registry
// entry are released on every path.
func (o *Orchestrator) process(job *Job, cred models.Credential) {
	ctx := o.ctx
	log := o.log.With("job_id", job.ID, "user_id", job.UserID)

	path := o.localPath(job)
	defer o.removeTemp(path)

	if job.CancelRequested() {
		o.complete(job, StatusCancelled, "", common.ErrCancelled)
		o.notify(ctx, job, MessageRef{}, msgCancelled, nil)
		return
	}
	if ctx.Err() != nil {
		o.complete(job, StatusCancelled, "", common.ErrShuttingDown)
		return
	}

	job.begin(credentialLabel(cred), o.opts.Now())
	kb := cancelKeyboard(job.ID)

	ref, err := o.msg.SendText(ctx, job.ChatID, msgStartingDownload, kb)
	if err != nil {
		log.Warn(ctx, "status message failed", "error", err)
	}
	edit := func(ctx context.Context, text string) error {
		if ref.MessageID == 0 {
			return nil
		}
		return o.msg.EditText(ctx, ref, text, kb)
	}

	dl := progress.NewReporter("Downloading", o.opts.ProgressInterval, edit, progress.WithClock(o.opts.Now))
	err = o.msg.DownloadTo(ctx, job.Source, path, func(cur, total int64) bool {
		if job.CancelRequested() {
			return false
		}
		if total <= 0 {
			total = job.SizeHint
		}
		if _, err := dl.Report(ctx, cur, total); err != nil {
			log.Debug(ctx, "progress update failed", "error", err)
		}
		return true
	})

	switch {
	case job.CancelRequested() || errors.Is(err, common.ErrCancelled):
		o.complete(job, StatusCancelled, "", common.ErrCancelled)
		o.notify(ctx, job, ref, msgCancelled, nil)
		log.Info(ctx, "download cancelled")
		return
	case ctx.Err() != nil:
		o.complete(job, StatusCancelled, "", common.ErrShuttingDown)
		o.notify(context.WithoutCancel(ctx), job, ref, msgShuttingDown, nil)
		return
	case err != nil:
		o.complete(job, StatusFailed, "", err)
		o.notify(ctx, job, ref, msgDownloadFailed(err), nil)
		log.Warn(ctx, "download failed", "error", err)
		return
	}

	job.setStatus(StatusUploading)
	if err := edit(ctx, msgStartingUpload); err != nil {
		log.Debug(ctx, "status message failed", "error", err)
	}

	name := media.UploadName(job.Source)
	ul := progress.NewReporter("Uploading", o.opts.ProgressInterval, edit, progress.WithClock(o.opts.Now))
	link, err := o.uploader.Upload(ctx, job, path, name, cred, ul)

	switch {
	case errors.Is(err, common.ErrCancelled):
		o.complete(job, StatusCancelled, "", common.ErrCancelled)
		o.notify(ctx, job, ref, msgUploadCancelled, nil)
		log.Info(ctx, "upload cancelled")
	case ctx.Err() != nil:
		o.complete(job, StatusCancelled, "", common.ErrShuttingDown)
		o.notify(context.WithoutCancel(ctx), job, ref, msgShuttingDown, nil)
	case err != nil:
		o.complete(job, StatusFailed, "", err)
		o.notify(ctx, job, ref, msgUploadFailed(err), nil)
		log.Error(ctx, "upload failed", "error", err)
	default:
		o.complete(job, StatusSucceeded, link, nil)
		o.notify(ctx, job, ref, msgUploaded(name, cred.Email, link), Keyboard{{{Text: "Open link", URL: link}}})
		log.Info(ctx, "job succeeded")
	}
}

// notify edits the job's status message, or sends a new one if there is
// none. Delivery failures are only logged.
func (o *Orchestrator) notify(ctx context.Context, job *Job, ref MessageRef, text string, kb Keyboard) {
	var err error
	if ref.MessageID != 0 {
		err = o.msg.EditText(ctx, ref, text, kb)
	} else {
		_, err = o.msg.SendText(ctx, job.ChatID, text, kb)
	}
	if err != nil {
		o.log.Warn(ctx, "notify failed", "job_id", job.ID, "error", err)
	}
}
