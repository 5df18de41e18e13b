package session

import (
	"encoding/json"
	"sort"
	"sync"
)

// ParseKey identifies one analyzed file within its system.
type ParseKey struct {
	System   string `json:"system"`
	FileName string `json:"file_name"`
}

// ParsedFile is one per-file analysis result returned by the parsing server.
type ParsedFile struct {
	System         string          `json:"system"`
	FileName       string          `json:"fileName"`
	AnalysisResult json.RawMessage `json:"analysisResult"`
}

// ParseReducer accumulates per-file analysis results keyed by
// (system, fileName). Unlike the graph and convert reducers a fresh parse run
// resets prior results: the parse panel always reflects the latest run.
type ParseReducer struct {
	mu       sync.Mutex
	run      Run
	results  map[ParseKey]json.RawMessage
	revision uint64
}

// ParseState is a point-in-time snapshot for the UI, files ordered by system
// then name for stable rendering.
type ParseState struct {
	Run      Run          `json:"run"`
	Files    []ParsedFile `json:"files"`
	Revision uint64       `json:"revision"`
}

func NewParseReducer() *ParseReducer {
	return &ParseReducer{
		run:     newRun(),
		results: make(map[ParseKey]json.RawMessage),
	}
}

// Begin starts a new run and discards results of the previous one.
func (r *ParseReducer) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.run.begin(); err != nil {
		return err
	}
	r.results = make(map[ParseKey]json.RawMessage)
	r.revision++
	return nil
}

// Complete folds the parsing response and finishes the run. Duplicate
// (system, fileName) pairs overwrite, last one wins.
func (r *ParseReducer) Complete(files []ParsedFile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.run.active() {
		return
	}
	for _, file := range files {
		if file.FileName == "" {
			continue
		}
		key := ParseKey{System: file.System, FileName: file.FileName}
		r.results[key] = append(json.RawMessage(nil), file.AnalysisResult...)
	}
	r.run.complete()
	r.revision++
}

// Fail marks the run failed after a transport or backend rejection.
func (r *ParseReducer) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.run.fail(err.Error(), "transport", "")
	} else {
		r.run.fail("parse aborted", "transport", "")
	}
	r.revision++
}

// Snapshot returns a deep copy of the current state.
func (r *ParseReducer) Snapshot() ParseState {
	r.mu.Lock()
	defer r.mu.Unlock()
	files := make([]ParsedFile, 0, len(r.results))
	for key, result := range r.results {
		files = append(files, ParsedFile{
			System:         key.System,
			FileName:       key.FileName,
			AnalysisResult: append(json.RawMessage(nil), result...),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].System != files[j].System {
			return files[i].System < files[j].System
		}
		return files[i].FileName < files[j].FileName
	})
	return ParseState{Run: r.run, Files: files, Revision: r.revision}
}

// Clear resets the reducer to idle with no results.
func (r *ParseReducer) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run.active() {
		return ErrRunActive
	}
	r.run = newRun()
	r.results = make(map[ParseKey]json.RawMessage)
	r.revision++
	return nil
}
