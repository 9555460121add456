// Package review serves a persisted change set for human review.
// Reviewers toggle per-field approval, override family member actions,
// and move a draft through its status lifecycle. The server never
// touches the record store.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/store"
)

// Server exposes the review API over HTTP.
type Server struct {
	store  store.Store
	router chi.Router
}

func NewServer(st store.Store) *Server {
	s := &Server{store: st}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Route("/changesets", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Post("/approve", s.handleSetStatus(store.StatusApproved))
			r.Post("/reject", s.handleSetStatus(store.StatusRejected))
			r.Patch("/changes/{field}", s.handleOverrideChange)
			r.Patch("/family/{index:[0-9]+}", s.handleOverrideFamily)
		})
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or testing.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down review server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting review server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "review: server listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := store.ChangeSetFilter{
		Status:    store.ChangeSetStatus(r.URL.Query().Get("status")),
		ContactID: r.URL.Query().Get("contact_id"),
	}
	drafts, err := s.store.ListChangeSets(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if drafts == nil {
		drafts = []store.Draft{}
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	draft, err := s.store.GetChangeSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleSetStatus(status store.ChangeSetStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.store.UpdateStatus(r.Context(), id, status); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
	}
}

func (s *Server) handleOverrideChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}

	draft, err := s.store.GetChangeSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	field := chi.URLParam(r, "field")
	found := false
	for i := range draft.ChangeSet.Changes {
		if draft.ChangeSet.Changes[i].FieldName == field {
			draft.ChangeSet.Changes[i].Approved = req.Approved
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, eris.Errorf("no change for field %s", field))
		return
	}

	if err := s.store.UpdateChangeSet(r.Context(), draft.ChangeSet); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, draft.ChangeSet)
}

func (s *Server) handleOverrideFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action model.FamilyAction `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	if !validAction(req.Action) {
		writeError(w, http.StatusBadRequest, eris.Errorf("invalid action %q", req.Action))
		return
	}

	draft, err := s.store.GetChangeSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var idx int
	fmt.Sscanf(chi.URLParam(r, "index"), "%d", &idx) //nolint:errcheck
	if idx < 0 || idx >= len(draft.ChangeSet.FamilyMembers) {
		writeError(w, http.StatusNotFound, eris.Errorf("no family member at index %d", idx))
		return
	}
	draft.ChangeSet.FamilyMembers[idx].Action = req.Action

	if err := s.store.UpdateChangeSet(r.Context(), draft.ChangeSet); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, draft.ChangeSet)
}

func validAction(a model.FamilyAction) bool {
	switch a {
	case model.ActionLinkExisting, model.ActionCreateNew,
		model.ActionUpdateExisting, model.ActionSkip:
		return true
	}
	return false
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
