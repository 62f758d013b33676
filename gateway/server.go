package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/session"
	"github.com/hupe1980/collabmesh/transport"
)

// Backend is the session surface the gateway drives.
type Backend interface {
	Subscribe(h transport.Handler) func()
	PublishRemote(ev core.Event)
	Snapshot() session.Snapshot
	UpdateDevSettings(patch core.DevSettingsPatch) (core.DevSettings, error)
	ResolveConflict(id string, policy core.ResolutionPolicy, merged string) (core.DocBlock, error)
	TriggerConflict() (core.Conflict, error)
	SimulateReconnect()
	Focus(blockID string) error
	Blur()
	Edit(blockID, content string) (core.DocBlock, error)
}

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// SendBuffer is the per-client queue of outbound events. A client that
	// falls this far behind loses events, like any lossy peer.
	SendBuffer int
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration
	// CheckOrigin overrides the websocket origin check. Defaults to allowing
	// every origin.
	CheckOrigin func(r *http.Request) bool
}

// Server serves one session.
type Server struct {
	backend  Backend
	opts     Options
	logger   logging.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
}

// New creates a gateway for backend.
func New(backend Backend, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		SendBuffer:   256,
		WriteTimeout: 5 * time.Second,
		CheckOrigin:  func(r *http.Request) bool { return true },
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		backend:  backend,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebsocket)
	r.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.handlePatchSettings).Methods(http.MethodPatch, http.MethodPost)
	r.HandleFunc("/blocks/{id}", s.handleEdit).Methods(http.MethodPut)
	r.HandleFunc("/blocks/{id}/focus", s.handleFocus).Methods(http.MethodPost)
	r.HandleFunc("/blur", s.handleBlur).Methods(http.MethodPost)
	r.HandleFunc("/conflicts/trigger", s.handleTriggerConflict).Methods(http.MethodPost)
	r.HandleFunc("/conflicts/{id}/resolve", s.handleResolveConflict).Methods(http.MethodPost)
	r.HandleFunc("/reconnect", s.handleReconnect).Methods(http.MethodPost)
	return r
}

// Handler returns the HTTP handler of the gateway.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot().Settings)
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch core.DevSettingsPatch
	if !readJSON(w, r, &patch) {
		return
	}
	settings, err := s.backend.UpdateDevSettings(patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type editRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !readJSON(w, r, &req) {
		return
	}
	b, err := s.backend.Edit(mux.Vars(r)["id"], req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Focus(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBlur(w http.ResponseWriter, _ *http.Request) {
	s.backend.Blur()
	w.WriteHeader(http.StatusNoContent)
}

type resolveRequest struct {
	Policy  core.ResolutionPolicy `json:"policy"`
	Content string                `json:"content,omitempty"`
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !readJSON(w, r, &req) {
		return
	}
	b, err := s.backend.ResolveConflict(mux.Vars(r)["id"], req.Policy, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleTriggerConflict(w http.ResponseWriter, _ *http.Request) {
	c, err := s.backend.TriggerConflict()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleReconnect(w http.ResponseWriter, _ *http.Request) {
	s.backend.SimulateReconnect()
	w.WriteHeader(http.StatusAccepted)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrMergeContentRequired),
		errors.Is(err, session.ErrUnknownPolicy),
		errors.Is(err, session.ErrInvalidBlockType),
		errors.Is(err, session.ErrInvalidTool),
		errors.Is(err, session.ErrMissingID),
		errors.Is(err, core.ErrInvalidSettings):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
