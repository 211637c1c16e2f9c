package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricewatch/internal/api"
	"pricewatch/internal/config"
	"pricewatch/internal/logging"
	"pricewatch/internal/services"
	"pricewatch/internal/tracking"
)

const maxRequestBody = 64 << 10

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/hooks/sweep", s.handleSweep)
	mux.HandleFunc("/hooks/track", s.handleTrack)
	mux.HandleFunc("/hooks/unfollow", s.handleUnfollow)
	mux.HandleFunc("/hooks/repair", s.handleRepair)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/items", s.handleItems)
	mux.HandleFunc("/api/trackers", s.handleTrackers)
	return s.withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID, err := s.daemon.TriggerSweep()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logFor(r).Info("sweep accepted", logging.String(logging.FieldRunID, runID))
	s.writeJSON(w, http.StatusAccepted, api.SweepAccepted{RunID: runID})
}

func (s *apiServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.TrackRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.daemon.subs.TrackItem(r.Context(), req.Item, req.Subscriber); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	itemID := req.Item
	if parsed, err := tracking.ParseItemID(req.Item); err == nil {
		itemID = parsed
	}
	s.writeJSON(w, http.StatusCreated, api.TrackResponse{ItemID: itemID, Subscriber: strings.TrimSpace(req.Subscriber)})
}

func (s *apiServer) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.UnfollowRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.daemon.subs.RemoveSubscriber(r.Context(), req.Subscriber)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromRemoveResult(result))
}

func (s *apiServer) handleRepair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report, err := s.daemon.Repair(r.Context())
	summary := api.FromRepairReport(report)
	if err != nil {
		summary.Error = err.Error()
		s.logFor(r).Warn("repair incomplete", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		StoreDriver:   status.StoreDriver,
		LockFilePath:  status.LockFilePath,
		SweepLockPath: status.SweepLockPath,
		SweepInFlight: status.SweepInFlight,
		NextSweepAt:   api.FormatTime(status.NextSweepAt),
		Items:         status.Items,
		Trackers:      status.Trackers,
		StoreError:    status.StoreError,
	}
	if status.LastSweep != nil {
		summary := api.FromReport(*status.LastSweep)
		summary.Error = status.LastSweepError
		payload.LastSweep = &summary
	}
	if status.LastRepair != nil {
		summary := api.FromRepairReport(*status.LastRepair)
		summary.Error = status.RepairError
		payload.LastRepair = &summary
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items, err := s.daemon.subs.ListItems(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemListResponse{Items: api.FromItems(items)})
}

func (s *apiServer) handleTrackers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	trackers, err := s.daemon.subs.ListTrackers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TrackerListResponse{Trackers: api.FromTrackers(trackers)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Wrap(services.ErrValidation, "api", "decode", "request body is empty", nil)
		}
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid request body", err)
	}
	return nil
}

// statusForError maps service error markers to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyTracking), errors.Is(err, services.ErrSweepInFlight):
		return http.StatusConflict
	case errors.Is(err, services.ErrUpstreamFetch):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrStoreWrite):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	logger := s.logFor(r)
	attrs := logging.Args(
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) logFor(r *http.Request) *slog.Logger {
	return logging.WithContext(r.Context(), s.log())
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
