package api

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/alarms"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/gateway"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/prefs"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/project"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/session"
)

// Server is the console's HTTP surface: the endpoints the browser UI talks
// to. It orchestrates the backend gateway, the per-session reducers, project
// drafts and preferences; every error is recovered here and returned as a
// JSON body, never allowed to take the process down.
type Server struct {
	router   chi.Router
	gateway  *gateway.Client
	prefs    *prefs.Store
	drafts   *project.Store
	feed     *alarms.Feed
	sessions *sessionRegistry

	uploadMu sync.Mutex
	uploads  map[string][]gateway.UploadFile

	cancelMu sync.Mutex
	cancels  map[string]*cancelEntry
}

// cancelEntry wraps a stream's cancel func so a finished goroutine can remove
// exactly its own registration, never a successor's.
type cancelEntry struct {
	cancel context.CancelFunc
}

// NewServer wires the console surface. The alarm feed may be nil when the
// subscription is disabled.
func NewServer(ctx context.Context, gw *gateway.Client, prefsStore *prefs.Store, feed *alarms.Feed) (*Server, error) {
	logger := common.Logger()
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if prefsStore == nil {
		return nil, fmt.Errorf("prefs store required")
	}
	srv := &Server{
		router:   chi.NewRouter(),
		gateway:  gw,
		prefs:    prefsStore,
		drafts:   project.NewStore(),
		feed:     feed,
		sessions: newSessionRegistry(),
		uploads:  make(map[string][]gateway.UploadFile),
		cancels:  make(map[string]*cancelEntry),
	}
	srv.routes()
	logger.Info("api: console server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	s.router.Get("/v1/session", s.handleSession)

	s.router.Post("/v1/draft", s.handleDraftCreate)
	s.router.Get("/v1/draft", s.handleDraftGet)
	s.router.Post("/v1/draft/edits", s.handleDraftEdit)
	s.router.Post("/v1/upload", s.handleUploadSubmit)

	s.router.Post("/v1/parse", s.handleParseStart)
	s.router.Get("/v1/parse/status", s.handleParseStatus)

	s.router.Post("/v1/understanding/start", s.handleUnderstandingStart)
	s.router.Post("/v1/understanding/stop", s.handleUnderstandingStop)
	s.router.Get("/v1/understanding/status", s.handleUnderstandingStatus)
	s.router.Get("/v1/understanding/graph", s.handleUnderstandingGraph)

	s.router.Post("/v1/convert/start", s.handleConvertStart)
	s.router.Post("/v1/convert/stop", s.handleConvertStop)
	s.router.Get("/v1/convert/status", s.handleConvertStatus)
	s.router.Get("/v1/convert/files", s.handleConvertFiles)

	s.router.Delete("/v1/data", s.handleDeleteAll)

	s.router.Get("/v1/prefs", s.handlePrefsGet)
	s.router.Put("/v1/prefs", s.handlePrefsPut)

	s.router.Get("/v1/alarms", s.handleAlarmHistory)
	s.router.Get("/v1/alarms/stream", s.handleAlarmStream)

	s.router.Get("/v1/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// sessionRegistry lazily creates one reducer set per Session-UUID.
type sessionRegistry struct {
	mu       sync.Mutex
	managers map[string]*session.Manager
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{managers: make(map[string]*session.Manager)}
}

func (r *sessionRegistry) get(sessionID string) *session.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	mgr, ok := r.managers[sessionID]
	if !ok {
		mgr = session.NewManager()
		r.managers[sessionID] = mgr
	}
	return mgr
}

func (s *Server) setUploadFiles(sessionID string, files []gateway.UploadFile) {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	s.uploads[sessionID] = files
}

func (s *Server) uploadFiles(sessionID string) []gateway.UploadFile {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	return s.uploads[sessionID]
}

func (s *Server) clearUploadFiles(sessionID string) {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	delete(s.uploads, sessionID)
}

// storeCancel registers the cancel func of a newly started stream and returns
// a cleanup the stream goroutine calls on exit. The cleanup removes only this
// registration, so a run that finished on its own cannot be "stopped" later
// and a replacement entry is left untouched.
func (s *Server) storeCancel(key string, cancel context.CancelFunc) func() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if previous, ok := s.cancels[key]; ok {
		previous.cancel()
	}
	entry := &cancelEntry{cancel: cancel}
	s.cancels[key] = entry
	return func() {
		s.cancelMu.Lock()
		defer s.cancelMu.Unlock()
		if s.cancels[key] == entry {
			delete(s.cancels, key)
		}
	}
}

func (s *Server) takeCancel(key string) context.CancelFunc {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	entry, ok := s.cancels[key]
	if !ok {
		return nil
	}
	delete(s.cancels, key)
	return entry.cancel
}
