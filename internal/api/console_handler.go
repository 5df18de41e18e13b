package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/prefs"
)

// handleDeleteAll wipes the session's project artifacts: the backend is asked
// to delete everything, then the local reducers, draft and retained files are
// cleared. A run still consuming its stream blocks the wipe.
func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	mgr := s.sessions.get(sess.ID)
	message, err := s.gateway.DeleteAll(r.Context(), sess)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	if err := mgr.Reset(); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	s.drafts.Delete(sess.ID)
	s.clearUploadFiles(sess.ID)
	mgr.AppendLog("info", "all project data deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

type prefsPayload struct {
	NodeLimit *int    `json:"nodeLimit,omitempty"`
	UMLDepth  *int    `json:"umlDepth,omitempty"`
	APIKey    *string `json:"apiKey,omitempty"`
	ActiveTab *string `json:"activeTab,omitempty"`
}

func (s *Server) handlePrefsGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	ctx := r.Context()
	nodeLimit, err := s.prefs.NodeLimit(ctx, sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	depth, err := s.prefs.UMLDepth(ctx, sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	apiKey, err := s.prefs.APIKey(ctx, sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	tab, err := s.prefs.ActiveTab(ctx, sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		prefs.KeyNodeLimit: nodeLimit,
		prefs.KeyUMLDepth:  depth,
		prefs.KeyAPIKey:    apiKey,
		prefs.KeyActiveTab: tab,
	})
}

// handlePrefsPut applies a partial preference update; absent fields are left
// untouched, mirroring how the UI wrote localStorage keys independently.
func (s *Server) handlePrefsPut(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var payload prefsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode preferences: %w", err))
		return
	}
	ctx := r.Context()
	if payload.NodeLimit != nil {
		if err := s.prefs.SetNodeLimit(ctx, sess.ID, *payload.NodeLimit); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if payload.UMLDepth != nil {
		if err := s.prefs.SetUMLDepth(ctx, sess.ID, *payload.UMLDepth); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if payload.APIKey != nil {
		if err := s.prefs.SetAPIKey(ctx, sess.ID, *payload.APIKey); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if payload.ActiveTab != nil {
		if err := s.prefs.SetActiveTab(ctx, sess.ID, *payload.ActiveTab); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	s.handlePrefsGet(w, r)
}

// handleLogs exposes both the per-session activity feed and the process-wide
// captured log ring.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activity": s.sessions.get(sess.ID).Logs(),
		"logger":   common.LogEntries(),
	})
}
