package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadFixture(t *testing.T) (string, *Job, *progress.Reporter) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	job := newJob(Request{UserID: 1, ChatID: 1, MessageID: 1, Source: media.Document{FileID: "f", Name: "f.bin"}}, time.Now())
	rep := progress.NewReporter("Uploading", time.Hour, func(context.Context, string) error { return nil })
	return path, job, rep
}

func TestUploader_FailFailSucceed(t *testing.T) {
	path, job, rep := uploadFixture(t)
	p := &fakeProvider{uploadErrs: []error{errBoom, errBoom}}
	s := &sleeper{}

	u := NewUploader(p, 3, 2*time.Second, s.Sleep, logging.NewNop())
	link, err := u.Upload(context.Background(), job, path, "f.bin", models.Credential{Email: "a@x"}, rep)
	require.NoError(t, err)
	assert.Equal(t, "https://share.example/k/f.bin", link)

	auths, uploads := p.counts()
	assert.Equal(t, 3, auths, "fresh session per attempt")
	assert.Equal(t, 3, uploads)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, s.recorded(), "delay only before attempts 2 and 3")
}

func TestUploader_FirstAttemptSucceedsWithoutDelay(t *testing.T) {
	path, job, rep := uploadFixture(t)
	p := &fakeProvider{}
	s := &sleeper{}

	u := NewUploader(p, 3, 2*time.Second, s.Sleep, logging.NewNop())
	_, err := u.Upload(context.Background(), job, path, "f.bin", models.Credential{}, rep)
	require.NoError(t, err)
	assert.Empty(t, s.recorded())
}

func TestUploader_ExhaustsAttempts(t *testing.T) {
	path, job, rep := uploadFixture(t)
	p := &fakeProvider{authErr: errBoom}
	s := &sleeper{}

	u := NewUploader(p, 3, 2*time.Second, s.Sleep, logging.NewNop())
	_, err := u.Upload(context.Background(), job, path, "f.bin", models.Credential{}, rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrTransferFailed))
	assert.True(t, errors.Is(err, errBoom), "last error is kept")

	auths, uploads := p.counts()
	assert.Equal(t, 3, auths)
	assert.Equal(t, 0, uploads)
	assert.Len(t, s.recorded(), 2)
}

func TestUploader_CancelStopsFurtherAttempts(t *testing.T) {
	path, job, rep := uploadFixture(t)
	p := &fakeProvider{uploadErrs: []error{errBoom, errBoom}}
	s := &sleeper{}

	u := NewUploader(p, 3, 2*time.Second, func(ctx context.Context, d time.Duration) error {
		job.RequestCancel()
		return s.Sleep(ctx, d)
	}, logging.NewNop())

	_, err := u.Upload(context.Background(), job, path, "f.bin", models.Credential{}, rep)
	assert.ErrorIs(t, err, common.ErrCancelled)

	auths, _ := p.counts()
	assert.Equal(t, 1, auths)
}

func TestUploader_ContextCancelledDuringDelay(t *testing.T) {
	path, job, rep := uploadFixture(t)
	p := &fakeProvider{uploadErrs: []error{errBoom}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := NewUploader(p, 3, time.Hour, nil, logging.NewNop())
	_, err := u.Upload(ctx, job, path, "f.bin", models.Credential{}, rep)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUploader_MissingFile(t *testing.T) {
	_, job, rep := uploadFixture(t)
	u := NewUploader(&fakeProvider{}, 3, 0, nil, logging.NewNop())

	_, err := u.Upload(context.Background(), job, filepath.Join(t.TempDir(), "gone"), "gone", models.Credential{}, rep)
	assert.ErrorIs(t, err, common.ErrTransferFailed)
}

func TestUploader_LivenessReportWhileStalled(t *testing.T) {
	path, job, _ := uploadFixture(t)
	clock := newFakeClock()
	var emits emitLog
	rep := progress.NewReporter("Uploading", time.Hour, emits.emit, progress.WithClock(clock.Now))

	p := &fakeProvider{hold: make(chan struct{}), started: make(chan struct{})}
	u := NewUploader(p, 1, 0, nil, logging.NewNop())
	u.pollInterval = time.Millisecond

	errc := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), job, path, "f.bin", models.Credential{}, rep)
		errc <- err
	}()

	<-p.started
	require.Eventually(t, func() bool { return len(emits.all()) == 1 }, 5*time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, emits.all(), 1, "throttled while no time passes")

	clock.Advance(11 * time.Second)
	require.Eventually(t, func() bool { return len(emits.all()) == 2 }, 5*time.Second, time.Millisecond,
		"a stalled upload still reports once the liveness interval passes")
	assert.Contains(t, emits.all()[1], "Uploading: 50.00%")

	close(p.hold)
	require.NoError(t, <-errc)
}

func TestUploader_CancelAbortsRunningAttempt(t *testing.T) {
	path, job, rep := uploadFixture(t)
	p := &fakeProvider{hold: make(chan struct{}), started: make(chan struct{})}
	s := &sleeper{}

	u := NewUploader(p, 3, 2*time.Second, s.Sleep, logging.NewNop())
	u.pollInterval = time.Millisecond

	errc := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), job, path, "f.bin", models.Credential{}, rep)
		errc <- err
	}()

	<-p.started
	job.RequestCancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, common.ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("upload kept running after cancel")
	}

	auths, uploads := p.counts()
	assert.Equal(t, 1, auths)
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, p.abortCount(), "provider call sees its context cancelled")
	assert.Empty(t, s.recorded(), "no retry after cancel")
}

func TestNewUploader_Delays(t *testing.T) {
	assert.Equal(t, time.Duration(0), NewUploader(&fakeProvider{}, 3, 0, nil, logging.NewNop()).retryDelay, "zero means no wait")
	assert.Equal(t, DefaultRetryDelay, NewUploader(&fakeProvider{}, 3, -1, nil, logging.NewNop()).retryDelay)
	assert.Equal(t, DefaultMaxRetries, NewUploader(&fakeProvider{}, 0, 0, nil, logging.NewNop()).maxRetries)
}

func TestOptions_Defaults(t *testing.T) {
	var zero Options
	zero.setDefaults()
	assert.Equal(t, time.Duration(0), zero.BatchCooldown, "zero cooldown means no wait")
	assert.Equal(t, DefaultBatchSize, zero.BatchSize)
	assert.Equal(t, DefaultHistorySize, zero.HistorySize)

	neg := Options{BatchCooldown: -1}
	neg.setDefaults()
	assert.Equal(t, DefaultBatchCooldown, neg.BatchCooldown)
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
