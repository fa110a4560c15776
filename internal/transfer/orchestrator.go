package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/progress"
	"github.com/dmitrijs2005/megarelay/internal/storage"
)

const (
	DefaultBatchSize     = 10
	DefaultBatchCooldown = 5 * time.Second
	DefaultHistorySize   = 256
)

// Options tunes the orchestrator. Zero values select the defaults, except
// for BatchCooldown and RetryDelay where zero means no wait and a negative
// value selects the default.
type Options struct {
	WorkDir          string
	BatchSize        int
	BatchCooldown    time.Duration
	ProgressInterval time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	HistorySize      int

	// Sleep and Now are replaced in tests.
	Sleep SleepFunc
	Now   func() time.Time
}

func (o *Options) setDefaults() {
	if o.WorkDir == "" {
		o.WorkDir = os.TempDir()
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchCooldown < 0 {
		o.BatchCooldown = DefaultBatchCooldown
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = progress.DefaultInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.HistorySize <= 0 {
		o.HistorySize = DefaultHistorySize
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Request asks for one file to be relayed.
type Request struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Source    media.Source
	SizeHint  int64
}

type CancelResult int

const (
	CancelNotFound CancelResult = iota
	CancelAccepted
)

// Stats is a snapshot of orchestrator counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Active    int   `json:"active"`
	Users     int   `json:"users"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

type userQueue struct {
	jobs    []*Job
	running bool
}

// Orchestrator owns every user's queue and the dispatcher goroutines that
// drain them. A user has at most one dispatcher; users never wait on each
// other.
type Orchestrator struct {
	opts     Options
	msg      Messenger
	creds    CredentialResolver
	uploader *Uploader
	log      logging.Logger

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	queues  map[int64]*userQueue
	pending map[string]*Job
	history *history
	closed  bool

	active *Registry

	succeeded atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

func NewOrchestrator(opts Options, msg Messenger, creds CredentialResolver, provider storage.Provider, log logging.Logger) *Orchestrator {
	opts.setDefaults()
	ctx, stop := context.WithCancel(context.Background())

	return &Orchestrator{
		opts:     opts,
		msg:      msg,
		creds:    creds,
		uploader: NewUploader(provider, opts.MaxRetries, opts.RetryDelay, opts.Sleep, log),
		log:      log,
		ctx:      ctx,
		stop:     stop,
		queues:   make(map[int64]*userQueue),
		pending:  make(map[string]*Job),
		history:  newHistory(opts.HistorySize),
		active:   NewRegistry(),
	}
}

// Enqueue appends a job to the user's queue and starts the user's
// dispatcher if it is idle.
func (o *Orchestrator) Enqueue(ctx context.Context, req Request) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id, err := o.enqueueLocked(req)
	if err != nil {
		return "", err
	}
	o.log.Info(ctx, "job queued", "job_id", id, "user_id", req.UserID)
	return id, nil
}

func (o *Orchestrator) enqueueLocked(req Request) (string, error) {
	if o.closed {
		return "", common.ErrShuttingDown
	}
	if req.Source == nil {
		return "", errors.New("request without source")
	}

	id := JobID(req.ChatID, req.MessageID)
	if _, ok := o.pending[id]; ok {
		return "", common.ErrDuplicateJob
	}
	if _, ok := o.active.Get(id); ok {
		return "", common.ErrDuplicateJob
	}

	job := newJob(req, o.opts.Now())
	q, ok := o.queues[req.UserID]
	if !ok {
		q = &userQueue{}
		o.queues[req.UserID] = q
	}
	q.jobs = append(q.jobs, job)
	o.pending[id] = job

	if !q.running {
		q.running = true
		o.wg.Add(1)
		go o.dispatch(req.UserID)
	}
	return id, nil
}

// Cancel stops a job. A queued job is dropped from its queue right away;
// a running one is flagged and stops at its next progress check.
func (o *Orchestrator) Cancel(id string) CancelResult {
	o.mu.Lock()
	if job, ok := o.pending[id]; ok {
		delete(o.pending, id)
		if q, ok := o.queues[job.UserID]; ok {
			q.jobs = slices.DeleteFunc(q.jobs, func(j *Job) bool { return j == job })
		}
		job.RequestCancel()
		job.finish(StatusCancelled, "", common.ErrCancelled, o.opts.Now())
		o.history.add(job.Snapshot())
		o.mu.Unlock()

		o.cancelled.Add(1)
		o.log.Info(o.ctx, "queued job cancelled", "job_id", id)
		if _, err := o.msg.SendText(o.ctx, job.ChatID, msgCancelledQueued, nil); err != nil {
			o.log.Warn(o.ctx, "notify failed", "job_id", id, "error", err)
		}
		return CancelAccepted
	}
	o.mu.Unlock()

	if job, ok := o.active.Get(id); ok {
		job.RequestCancel()
		o.log.Info(o.ctx, "cancel requested", "job_id", id)
		return CancelAccepted
	}
	return CancelNotFound
}

// Status returns a snapshot of a queued, running or recently finished job.
func (o *Orchestrator) Status(id string) (Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if job, ok := o.pending[id]; ok {
		return job.Snapshot(), true
	}
	if job, ok := o.active.Get(id); ok {
		return job.Snapshot(), true
	}
	return o.history.find(id)
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Stats{
		Queued:    len(o.pending),
		Active:    o.active.Len(),
		Users:     len(o.queues),
		Succeeded: o.succeeded.Load(),
		Failed:    o.failed.Load(),
		Cancelled: o.cancelled.Load(),
	}
}

// Shutdown rejects new jobs, cancels running transfers and waits for every
// dispatcher to exit or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// complete records a terminal job. Called exactly once per job that left
// the queue.
func (o *Orchestrator) complete(job *Job, s Status, link string, err error) {
	job.finish(s, link, err, o.opts.Now())

	switch s {
	case StatusSucceeded:
		o.succeeded.Add(1)
	case StatusCancelled:
		o.cancelled.Add(1)
	default:
		o.failed.Add(1)
	}

	o.mu.Lock()
	o.history.add(job.Snapshot())
	o.active.Remove(job.ID)
	o.mu.Unlock()
}

func (o *Orchestrator) localPath(job *Job) string {
	_, ext := media.Resolve(job.Source)
	return filepath.Join(o.opts.WorkDir, media.LocalName(job.ChatID, job.MessageID, ext))
}

func (o *Orchestrator) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.log.Warn(o.ctx, "temp file cleanup failed", "path", path, "error", err)
	}
}

func credentialLabel(c models.Credential) string {
	return c.Email
}
