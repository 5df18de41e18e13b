package session

import (
	"sync"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common/telemetry"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/stream"
)

// ConvertedFile is one generated source file surfaced by the convert stream.
// Files are keyed by name; a later emission for the same name wins.
type ConvertedFile struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// ClassDiagram is the mermaid payload the convert stream emits alongside
// generated code.
type ClassDiagram struct {
	Diagram           string `json:"diagram"`
	ClassCount        int    `json:"class_count"`
	RelationshipCount int    `json:"relationship_count"`
}

// ConvertReducer folds the convert stream: file upserts, a discrete step
// counter advanced by status events, and the latest class diagram. Converted
// files are retained across runs so a retry merges into earlier output.
type ConvertReducer struct {
	mu          sync.Mutex
	run         Run
	files       map[string]ConvertedFile
	diagram     *ClassDiagram
	steps       int
	lastStatus  string
	lastMessage string
	revision    uint64
}

// ConvertState is a point-in-time snapshot for the UI.
type ConvertState struct {
	Run         Run                      `json:"run"`
	Files       map[string]ConvertedFile `json:"files"`
	Diagram     *ClassDiagram            `json:"diagram,omitempty"`
	Steps       int                      `json:"steps"`
	LastStatus  string                   `json:"last_status,omitempty"`
	LastMessage string                   `json:"last_message,omitempty"`
	Revision    uint64                   `json:"revision"`
}

func NewConvertReducer() *ConvertReducer {
	return &ConvertReducer{
		run:   newRun(),
		files: make(map[string]ConvertedFile),
	}
}

// Begin starts a new run, resetting the step counter but keeping files.
func (r *ConvertReducer) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.run.begin(); err != nil {
		return err
	}
	r.steps = 0
	r.lastStatus = ""
	r.revision++
	return nil
}

// Apply folds one stream event; no-op once the run is terminal.
func (r *ConvertReducer) Apply(evt stream.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.run.active() {
		return
	}
	switch evt.Type {
	case stream.EventMessage:
		if evt.Content != "" {
			r.lastMessage = evt.Content
		}
		r.revision++
	case stream.EventStatus:
		r.steps++
		if evt.Content != "" {
			r.lastStatus = evt.Content
		}
		r.revision++
	case stream.EventData:
		payload, err := evt.Convert()
		if err != nil {
			common.Logger().Warn("session: convert data payload invalid", "error", err)
			return
		}
		r.applyPayload(payload)
		r.revision++
	case stream.EventComplete:
		r.run.complete()
		r.revision++
	case stream.EventError:
		info := evt.ErrorInfo()
		r.run.fail(info.Content, info.ErrorType, info.TraceID)
		r.revision++
	}
}

func (r *ConvertReducer) applyPayload(payload stream.ConvertPayload) {
	switch payload.FileType {
	case stream.ConvertFileTypeDiagram:
		r.diagram = &ClassDiagram{
			Diagram:           payload.Diagram,
			ClassCount:        payload.ClassCount,
			RelationshipCount: payload.RelationshipCount,
		}
	case stream.ConvertFileTypeCode, "":
		if payload.FileName == "" {
			return
		}
		r.files[payload.FileName] = ConvertedFile{
			FileName: payload.FileName,
			Content:  payload.Code,
			Language: payload.Language,
		}
		telemetry.RecordConvertUpsert()
	}
}

// FailTransport marks the run failed; previously converted files survive.
func (r *ConvertReducer) FailTransport(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.run.fail(err.Error(), "transport", "")
	} else {
		r.run.fail("stream aborted", "transport", "")
	}
	r.revision++
}

// Snapshot returns a deep copy of the current state.
func (r *ConvertReducer) Snapshot() ConvertState {
	r.mu.Lock()
	defer r.mu.Unlock()
	files := make(map[string]ConvertedFile, len(r.files))
	for name, file := range r.files {
		files[name] = file
	}
	var diagram *ClassDiagram
	if r.diagram != nil {
		copied := *r.diagram
		diagram = &copied
	}
	return ConvertState{
		Run:         r.run,
		Files:       files,
		Diagram:     diagram,
		Steps:       r.steps,
		LastStatus:  r.lastStatus,
		LastMessage: r.lastMessage,
		Revision:    r.revision,
	}
}

// Clear discards converted output, matching the delete-all contract.
func (r *ConvertReducer) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run.active() {
		return ErrRunActive
	}
	r.run = newRun()
	r.files = make(map[string]ConvertedFile)
	r.diagram = nil
	r.steps = 0
	r.lastStatus = ""
	r.lastMessage = ""
	r.revision++
	return nil
}
