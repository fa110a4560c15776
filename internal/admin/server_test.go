package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/auth"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "admin-secret"

type fakeJobs struct {
	snaps     map[string]transfer.Snapshot
	cancelled []string
}

func (f *fakeJobs) Status(id string) (transfer.Snapshot, bool) {
	s, ok := f.snaps[id]
	return s, ok
}

func (f *fakeJobs) Cancel(id string) transfer.CancelResult {
	if _, ok := f.snaps[id]; !ok {
		return transfer.CancelNotFound
	}
	f.cancelled = append(f.cancelled, id)
	return transfer.CancelAccepted
}

func (f *fakeJobs) Stats() transfer.Stats {
	return transfer.Stats{Queued: 2, Active: 1, Users: 1, Succeeded: 5}
}

type fakeUsers []models.SeenUser

func (f fakeUsers) List() []models.SeenUser { return f }

func newTestServer(t *testing.T) (*httptest.Server, *fakeJobs) {
	t.Helper()
	jobs := &fakeJobs{snaps: map[string]transfer.Snapshot{
		"1:2": {ID: "1:2", Status: transfer.StatusDownloading},
	}}
	users := fakeUsers{{ID: 1, Username: "alice"}}
	srv := httptest.NewServer(NewServer("", jobs, users, logging.NewNop(), secret).Handler())
	t.Cleanup(srv.Close)
	return srv, jobs
}

func do(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func validToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.GenerateToken(99, []byte(secret), time.Hour)
	require.NoError(t, err)
	return tok
}

func TestServer_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/stats", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/stats", "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := auth.GenerateToken(99, []byte(secret), -time.Minute)
	require.NoError(t, err)
	resp = do(t, http.MethodGet, srv.URL+"/api/stats", expired)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "token expired", body["error"])
}

func TestServer_JobStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	tok := validToken(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/jobs/1:2", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap transfer.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "1:2", snap.ID)
	assert.Equal(t, transfer.StatusDownloading, snap.Status)

	resp = do(t, http.MethodGet, srv.URL+"/api/jobs/9:9", tok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Cancel(t *testing.T) {
	srv, jobs := newTestServer(t)
	tok := validToken(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/jobs/1:2/cancel", tok)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"1:2"}, jobs.cancelled)

	resp = do(t, http.MethodPost, srv.URL+"/api/jobs/9:9/cancel", tok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/jobs/1:2/cancel", tok)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_StatsAndUsers(t *testing.T) {
	srv, _ := newTestServer(t)
	tok := validToken(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/stats", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 2, stats["queued"])
	assert.EqualValues(t, 5, stats["succeeded"])
	assert.EqualValues(t, 1, stats["known_users"])

	resp = do(t, http.MethodGet, srv.URL+"/api/users", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var users []models.SeenUser
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakeJobs{}, nil, logging.NewNop(), secret)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
