package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/gateway"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/project"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/session"
)

const sessionHeader = "Session-UUID"

// resolveSession determines the identity for a request. The browser sends its
// Session-UUID header once it has one; otherwise the persisted console id is
// used, and when neither exists a fresh id is minted and persisted so the
// session survives restarts the way localStorage did.
func (s *Server) resolveSession(r *http.Request) (gateway.Session, error) {
	ctx := r.Context()
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		stored, err := s.prefs.SessionID(ctx)
		if err != nil {
			return gateway.Session{}, err
		}
		id = stored
	}
	if id == "" {
		id = uuid.NewString()
		if err := s.prefs.SetSessionID(ctx, id); err != nil {
			return gateway.Session{}, err
		}
		common.Logger().Info("api: minted session id", "session", id)
	}
	apiKey, err := s.prefs.APIKey(ctx, id)
	if err != nil {
		return gateway.Session{}, err
	}
	return gateway.Session{ID: id, APIKey: apiKey, Language: r.Header.Get("Accept-Language")}, nil
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	connected := false
	if s.feed != nil {
		connected = s.feed.Connected()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":       sess.ID,
		"alarmsConnected": connected,
	})
}

// statusFromError maps domain errors onto HTTP statuses: busy reducers are a
// conflict, missing drafts are not found. Backend rejections keep their own
// 4xx status so the UI sees the validation the backend performed; 5xx and
// everything else surface as bad gateway.
func statusFromError(err error) int {
	var statusErr *gateway.StatusError
	switch {
	case errors.Is(err, session.ErrRunActive):
		return http.StatusConflict
	case errors.Is(err, project.ErrDraftNotFound):
		return http.StatusNotFound
	case errors.As(err, &statusErr):
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			return statusErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
