// Package admin serves the JWT-protected HTTP admin API: job status, job
// cancellation and relay statistics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/auth"
	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/models"
	"github.com/dmitrijs2005/megarelay/internal/transfer"
)

// Jobs is the part of the orchestrator the API exposes.
type Jobs interface {
	Status(id string) (transfer.Snapshot, bool)
	Cancel(id string) transfer.CancelResult
	Stats() transfer.Stats
}

// Users lists the users the bot has seen.
type Users interface {
	List() []models.SeenUser
}

type Server struct {
	address   string
	jobs      Jobs
	users     Users
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, jobs Jobs, users Users, l logging.Logger, secretKey string) *Server {
	return &Server{
		address:   address,
		jobs:      jobs,
		users:     users,
		logger:    l.With("module", "admin_server"),
		jwtSecret: []byte(secretKey),
	}
}

type ctxKey string

const adminIDKey ctxKey = "adminID"

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs/{id}", s.handleStatus)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/users", s.handleUsers)
	return s.requireToken(mux)
}

// Run serves until ctx is done and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping admin server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting admin server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		adminID, err := auth.ParseToken(token, s.jwtSecret)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			writeError(w, http.StatusUnauthorized, msg)
			return
		}

		ctx := context.WithValue(r.Context(), adminIDKey, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.jobs.Status(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.jobs.Cancel(id) != transfer.CancelAccepted {
		writeError(w, http.StatusNotFound, "session no longer active")
		return
	}

	s.logger.Info(r.Context(), "job cancelled via admin api", "job_id", id, "admin_id", r.Context().Value(adminIDKey))
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "result": "cancel requested"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	type response struct {
		transfer.Stats
		KnownUsers int `json:"known_users"`
	}
	resp := response{Stats: s.jobs.Stats()}
	if s.users != nil {
		resp.KnownUsers = len(s.users.List())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	list := []models.SeenUser{}
	if s.users != nil {
		list = append(list, s.users.List()...)
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
