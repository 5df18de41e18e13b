package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/gateway"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/session"
)

type understandingStartRequest struct {
	ProjectName string `json:"projectName,omitempty"`
	NodeLimit   int    `json:"nodeLimit,omitempty"`
}

// handleUnderstandingStart begins graph generation. The NDJSON stream is
// consumed by a background goroutine that folds every event into the
// understanding reducer; the UI polls status and graph snapshots. A stream
// that breaks mid-flight fails the run but keeps the accumulated graph.
func (s *Server) handleUnderstandingStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var req understandingStartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}
	projectName, err := s.projectName(sess.ID, req.ProjectName)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	nodeLimit := req.NodeLimit
	if nodeLimit <= 0 {
		nodeLimit, err = s.prefs.NodeLimit(r.Context(), sess.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	mgr := s.sessions.get(sess.ID)
	reducer := mgr.Understanding()
	if err := reducer.Begin(); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	mgr.AppendLog("info", "understanding started for %q, node limit %d", projectName, nodeLimit)

	ctx, cancel := context.WithCancel(context.Background())
	cleanup := s.storeCancel(sess.ID+":understanding", cancel)
	gwReq := gateway.UnderstandingRequest{ProjectName: projectName, NodeLimit: nodeLimit}
	go func() {
		defer cleanup()
		defer cancel()
		err := s.gateway.StreamUnderstanding(ctx, sess, gwReq, reducer.Apply)
		s.finishRun(mgr, "understanding", err, func() session.Status {
			return reducer.Snapshot().Run.Status
		}, reducer.FailTransport)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(session.StatusRunning)})
}

func (s *Server) handleUnderstandingStop(w http.ResponseWriter, r *http.Request) {
	s.stopStream(w, r, "understanding")
}

func (s *Server) handleUnderstandingStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	state := s.sessions.get(sess.ID).Understanding().Snapshot()
	// Status polls skip the node and link maps; the graph endpoint serves them.
	state.Nodes = nil
	state.Links = nil
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleUnderstandingGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.get(sess.ID).Understanding().Snapshot())
}

type convertStartRequest struct {
	ProjectName string   `json:"projectName,omitempty"`
	ClassNames  []string `json:"classNames"`
	UMLDepth    int      `json:"umlDepth,omitempty"`
	Target      string   `json:"target,omitempty"`
}

// handleConvertStart begins code conversion for the selected classes. Class
// selection is mandatory; depth defaults to the stored preference.
func (s *Server) handleConvertStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var req convertStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if len(req.ClassNames) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("class names required"))
		return
	}
	projectName, err := s.projectName(sess.ID, req.ProjectName)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	depth := req.UMLDepth
	if depth <= 0 {
		depth, err = s.prefs.UMLDepth(r.Context(), sess.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	mgr := s.sessions.get(sess.ID)
	reducer := mgr.Convert()
	if err := reducer.Begin(); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	mgr.AppendLog("info", "convert started for %q: %d classes, depth %d", projectName, len(req.ClassNames), depth)

	ctx, cancel := context.WithCancel(context.Background())
	cleanup := s.storeCancel(sess.ID+":convert", cancel)
	gwReq := gateway.ConvertRequest{
		ProjectName: projectName,
		ClassNames:  req.ClassNames,
		UMLDepth:    depth,
		Target:      req.Target,
	}
	go func() {
		defer cleanup()
		defer cancel()
		err := s.gateway.StreamConvert(ctx, sess, gwReq, reducer.Apply)
		s.finishRun(mgr, "convert", err, func() session.Status {
			return reducer.Snapshot().Run.Status
		}, reducer.FailTransport)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(session.StatusRunning)})
}

func (s *Server) handleConvertStop(w http.ResponseWriter, r *http.Request) {
	s.stopStream(w, r, "convert")
}

func (s *Server) handleConvertStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	state := s.sessions.get(sess.ID).Convert().Snapshot()
	state.Files = nil
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleConvertFiles(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.get(sess.ID).Convert().Snapshot())
}

// finishRun settles a reducer after its stream goroutine returns. A transport
// error fails the run; a stream that ended cleanly but never delivered a
// terminal event is treated the same, so the UI never sticks on running.
func (s *Server) finishRun(mgr *session.Manager, operation string, err error, status func() session.Status, failTransport func(error)) {
	if err != nil {
		failTransport(err)
		mgr.AppendLog("error", "%s stream failed: %v", operation, err)
		return
	}
	switch status() {
	case session.StatusRunning:
		failTransport(errors.New("stream ended without a terminal event"))
		mgr.AppendLog("warn", "%s stream ended without completion", operation)
	case session.StatusCompleted:
		mgr.AppendLog("info", "%s completed", operation)
	case session.StatusFailed:
		mgr.AppendLog("error", "%s reported failure", operation)
	}
}

// projectName resolves the effective project: the explicit request value when
// present, otherwise the session draft's name.
func (s *Server) projectName(sessionID, explicit string) (string, error) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed, nil
	}
	draft, err := s.drafts.Get(sessionID)
	if err != nil {
		return "", fmt.Errorf("project name required: %w", err)
	}
	return draft.ProjectName, nil
}

func (s *Server) stopStream(w http.ResponseWriter, r *http.Request, operation string) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	cancel := s.takeCancel(sess.ID + ":" + operation)
	if cancel == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("no %s stream running", operation))
		return
	}
	cancel()
	mgr := s.sessions.get(sess.ID)
	mgr.AppendLog("warn", "%s stopped by user", operation)
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}
