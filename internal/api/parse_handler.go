package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/gateway"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/session"
)

type parseStartRequest struct {
	Strategy    string `json:"strategy,omitempty"`
	Target      string `json:"target,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
}

// handleParseStart triggers analysis on the parsing server. The call is
// asynchronous: the reducer moves to running, a goroutine performs the
// request/response exchange, and the UI polls /v1/parse/status. The project
// layout comes from the session's draft unless the request names one.
func (s *Server) handleParseStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var req parseStartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode parse request: %w", err))
			return
		}
	}

	draft, err := s.drafts.Get(sess.ID)
	if err != nil {
		writeError(w, statusFromError(err), fmt.Errorf("parse needs an uploaded project: %w", err))
		return
	}
	gwReq := gateway.ParseRequest{
		Strategy:    req.Strategy,
		Target:      req.Target,
		ProjectName: draft.ProjectName,
	}
	if strings.TrimSpace(req.ProjectName) != "" {
		gwReq.ProjectName = strings.TrimSpace(req.ProjectName)
	}
	for _, system := range draft.Systems {
		gwReq.Systems = append(gwReq.Systems, gateway.ParseSystem{Name: system.Name, Files: system.Files})
	}

	mgr := s.sessions.get(sess.ID)
	reducer := mgr.Parse()
	if err := reducer.Begin(); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	mgr.AppendLog("info", "parse started for %q", gwReq.ProjectName)

	go func() {
		resp, err := s.gateway.Parse(context.Background(), sess, gwReq)
		if err != nil {
			reducer.Fail(err)
			mgr.AppendLog("error", "parse failed: %v", err)
			return
		}
		reducer.Complete(resp.Files)
		mgr.AppendLog("info", "parse completed: %d files analyzed", len(resp.Files))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(session.StatusRunning)})
}

func (s *Server) handleParseStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.get(sess.ID).Parse().Snapshot())
}
