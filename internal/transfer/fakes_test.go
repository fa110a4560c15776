package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/storage"
)

// recorder collects an ordered event log shared by the fakes.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.snapshot() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type sentMessage struct {
	ChatID int64
	Text   string
	KB     Keyboard
}

type fakeMessenger struct {
	rec *recorder

	mu     sync.Mutex
	nextID int
	texts  map[int]string
	sent   []sentMessage

	// download overrides the default behaviour of writing "data".
	download func(ctx context.Context, src media.Source, path string, onProgress func(int64, int64) bool) error
}

func newFakeMessenger(rec *recorder) *fakeMessenger {
	return &fakeMessenger{rec: rec, texts: map[int]string{}}
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.texts[m.nextID] = text
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text, KB: kb})
	return MessageRef{ChatID: chatID, MessageID: m.nextID}, nil
}

func (m *fakeMessenger) EditText(ctx context.Context, ref MessageRef, text string, kb Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[ref.MessageID] = text
	return nil
}

func (m *fakeMessenger) DownloadTo(ctx context.Context, src media.Source, path string, onProgress func(int64, int64) bool) error {
	m.rec.add("download:%s", src.Ref())
	if m.download != nil {
		return m.download(ctx, src, path, onProgress)
	}
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		return err
	}
	if !onProgress(4, 4) {
		return common.ErrCancelled
	}
	return nil
}

func (m *fakeMessenger) allTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.texts))
	for i := 1; i <= m.nextID; i++ {
		out = append(out, m.texts[i])
	}
	return out
}

func (m *fakeMessenger) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Text)
	}
	return out
}

type fakeSession struct{ account string }

func (s fakeSession) Account() string { return s.account }

type fakeProvider struct {
	rec *recorder

	mu         sync.Mutex
	auths      int
	uploads    int
	uploadErrs []error
	authErr    error

	// hold, when set, parks UploadFile after reporting 2 bytes until it is
	// closed or the upload context ends.
	hold    chan struct{}
	started chan struct{}
	aborted int
}

func (p *fakeProvider) Authenticate(ctx context.Context, email, secret string) (storage.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auths++
	if p.rec != nil {
		p.rec.add("auth:%s", email)
	}
	if p.authErr != nil {
		return nil, p.authErr
	}
	return fakeSession{account: email}, nil
}

func (p *fakeProvider) UploadFile(ctx context.Context, s storage.Session, path, name string, onProgress storage.ProgressFunc) (storage.Handle, error) {
	p.mu.Lock()
	p.uploads++
	n := p.uploads
	var err error
	if n <= len(p.uploadErrs) {
		err = p.uploadErrs[n-1]
	}
	p.mu.Unlock()

	if p.rec != nil {
		p.rec.add("upload:%s", name)
	}
	if err != nil {
		return storage.Handle{}, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return storage.Handle{}, statErr
	}
	if p.hold != nil {
		if onProgress != nil {
			onProgress(2)
		}
		if p.started != nil {
			close(p.started)
		}
		select {
		case <-p.hold:
		case <-ctx.Done():
			p.mu.Lock()
			p.aborted++
			p.mu.Unlock()
			return storage.Handle{}, ctx.Err()
		}
	}
	if onProgress != nil {
		onProgress(4)
	}
	return storage.Handle{Key: "k/" + name, Size: 4}, nil
}

func (p *fakeProvider) GetShareLink(ctx context.Context, s storage.Session, h storage.Handle) (string, error) {
	return "https://share.example/" + h.Key, nil
}

func (p *fakeProvider) abortCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

func (p *fakeProvider) counts() (auths, uploads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auths, p.uploads
}

type fakeResolver struct {
	mu    sync.Mutex
	cred  models.Credential
	err   error
	calls int
}

func (r *fakeResolver) Resolve(ctx context.Context, userID int64) (models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return models.Credential{}, r.err
	}
	return r.cred, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// sleeper records requested waits and never actually sleeps.
type sleeper struct {
	rec *recorder

	mu      sync.Mutex
	waits   []time.Duration
	block   map[time.Duration]chan struct{}
	entered chan time.Duration
}

func (s *sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	gate := s.block[d]
	entered := s.entered
	s.mu.Unlock()

	if s.rec != nil {
		s.rec.add("sleep:%s", d)
	}
	if entered != nil {
		entered <- d
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (s *sleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// emitLog collects texts delivered by a progress.Reporter.
type emitLog struct {
	mu    sync.Mutex
	texts []string
}

func (l *emitLog) emit(_ context.Context, text string) error {
	l.mu.Lock()
	l.texts = append(l.texts, text)
	l.mu.Unlock()
	return nil
}

func (l *emitLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.texts...)
}

var errBoom = errors.New("boom")
