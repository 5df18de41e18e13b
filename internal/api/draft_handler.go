package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/gateway"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/project"
)

const (
	maxUploadMemory = 32 << 20
	maxUploadFile   = 16 << 20
)

// handleDraftCreate receives the multipart file selection, builds the project
// structure draft from the relative paths, and retains file contents for the
// later submit. A new selection replaces any previous draft for the session.
func (s *Server) handleDraftCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload form: %w", err))
		return
	}
	projectName := strings.TrimSpace(r.FormValue("projectName"))
	if projectName == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("project name required"))
		return
	}
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	var files []gateway.UploadFile
	var paths []string
	for _, header := range fileHeaders {
		part, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("open uploaded file %q: %w", header.Filename, err))
			return
		}
		content, err := io.ReadAll(io.LimitReader(part, maxUploadFile))
		part.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read uploaded file %q: %w", header.Filename, err))
			return
		}
		files = append(files, gateway.UploadFile{Name: header.Filename, Content: content})
		paths = append(paths, header.Filename)
	}

	draft, err := project.Build(projectName, paths)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.drafts.Put(sess.ID, draft)
	s.setUploadFiles(sess.ID, files)
	mgr := s.sessions.get(sess.ID)
	mgr.AppendLog("info", "draft built for %q: %d systems, %d ddl scripts", projectName, len(draft.Systems), len(draft.DDL))
	writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleDraftGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	draft, err := s.drafts.Get(sess.ID)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

type draftEditRequest struct {
	Action   string `json:"action"`
	System   string `json:"system,omitempty"`
	ToSystem string `json:"toSystem,omitempty"`
	File     string `json:"file,omitempty"`
	NewName  string `json:"newName,omitempty"`
}

// handleDraftEdit applies one structural edit: moving a file between systems,
// marking or unmarking DDL, renaming a system, or dropping a file.
func (s *Server) handleDraftEdit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var req draftEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode edit request: %w", err))
		return
	}
	err = s.drafts.Update(sess.ID, func(draft *project.Draft) error {
		switch req.Action {
		case "move":
			return draft.MoveFile(req.System, req.ToSystem, req.File)
		case "mark_ddl":
			return draft.MarkDDL(req.System, req.File)
		case "unmark_ddl":
			return draft.UnmarkDDL(req.File, req.ToSystem)
		case "rename":
			return draft.RenameSystem(req.System, req.NewName)
		case "remove":
			return draft.RemoveFile(req.System, req.File)
		default:
			return fmt.Errorf("unknown edit action %q", req.Action)
		}
	})
	if err != nil {
		status := statusFromError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	draft, err := s.drafts.Get(sess.ID)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// handleUploadSubmit validates the draft and forwards the retained files to
// the parsing server as one multipart request.
func (s *Server) handleUploadSubmit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	draft, err := s.drafts.Get(sess.ID)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	if err := draft.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	retained := s.uploadFiles(sess.ID)
	if len(retained) == 0 {
		writeError(w, http.StatusConflict, fmt.Errorf("no retained files; re-upload the selection"))
		return
	}
	// Edits may have dropped files since the selection was retained; only
	// files the draft still references are submitted.
	wanted := draft.FileSet()
	files := make([]gateway.UploadFile, 0, len(retained))
	for _, file := range retained {
		if _, ok := wanted[file.Name]; ok {
			files = append(files, file)
		}
	}
	if len(files) == 0 {
		writeError(w, http.StatusConflict, fmt.Errorf("draft references none of the retained files; re-upload the selection"))
		return
	}

	meta := gateway.UploadMetadata{ProjectName: draft.ProjectName, DDL: draft.DDL}
	for _, system := range draft.Systems {
		meta.Systems = append(meta.Systems, system.Name)
	}
	result, err := s.gateway.Upload(r.Context(), sess, meta, files)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	s.clearUploadFiles(sess.ID)
	mgr := s.sessions.get(sess.ID)
	mgr.AppendLog("info", "upload accepted for %q: %d files", result.ProjectName, len(result.SystemFiles))
	writeJSON(w, http.StatusOK, result)
}
