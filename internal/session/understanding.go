package session

import (
	"sync"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common/telemetry"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/stream"
)

// UnderstandingReducer folds the understanding (graph generation) stream into
// node and link maps keyed by id. Repeated ids overwrite rather than
// duplicate, so re-running analysis merges into the graph the UI already
// shows; a failed stream leaves previously received nodes intact.
type UnderstandingReducer struct {
	mu          sync.Mutex
	run         Run
	nodes       map[string]stream.GraphNode
	links       map[string]stream.GraphLink
	progress    float64
	currentFile string
	lastMessage string
	revision    uint64
}

// UnderstandingState is a point-in-time snapshot for the UI. Revision
// increases on every mutation so pollers can skip unchanged payloads.
type UnderstandingState struct {
	Run         Run                         `json:"run"`
	Nodes       map[string]stream.GraphNode `json:"nodes"`
	Links       map[string]stream.GraphLink `json:"links"`
	Progress    float64                     `json:"progress"`
	CurrentFile string                      `json:"current_file,omitempty"`
	LastMessage string                      `json:"last_message,omitempty"`
	Revision    uint64                      `json:"revision"`
}

func NewUnderstandingReducer() *UnderstandingReducer {
	return &UnderstandingReducer{
		run:   newRun(),
		nodes: make(map[string]stream.GraphNode),
		links: make(map[string]stream.GraphLink),
	}
}

// Begin starts a new run. Accumulated graph data is retained and merged.
func (r *UnderstandingReducer) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.run.begin(); err != nil {
		return err
	}
	r.progress = 0
	r.currentFile = ""
	r.revision++
	return nil
}

// Apply folds one stream event. Events arriving after a terminal state are
// dropped without touching accumulated data.
func (r *UnderstandingReducer) Apply(evt stream.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.run.active() {
		return
	}
	switch evt.Type {
	case stream.EventMessage, stream.EventStatus:
		if evt.Content != "" {
			r.lastMessage = evt.Content
		}
		r.revision++
	case stream.EventData:
		payload, err := evt.Graph()
		if err != nil {
			common.Logger().Warn("session: understanding data payload invalid", "error", err)
			return
		}
		r.mergeFragment(payload)
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

func (r *UnderstandingReducer) mergeFragment(payload stream.GraphPayload) {
	var nodes, links int
	for _, node := range payload.Graph.Nodes {
		if node.ID == "" {
			continue
		}
		r.nodes[node.ID] = node
		nodes++
	}
	for _, link := range payload.Graph.Links {
		key := link.ID
		if key == "" {
			key = link.From + "->" + link.To
		}
		if key == "->" {
			continue
		}
		r.links[key] = link
		links++
	}
	telemetry.RecordGraphUpsert(nodes, links)
	if payload.AnalysisProgress > 0 {
		r.progress = payload.AnalysisProgress
	}
	if payload.CurrentFile != "" {
		r.currentFile = payload.CurrentFile
	}
}

// FailTransport marks the run failed after a non-2xx response or a broken
// connection. Accumulated graph data survives for retry.
func (r *UnderstandingReducer) FailTransport(err error) {
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
func (r *UnderstandingReducer) Snapshot() UnderstandingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := make(map[string]stream.GraphNode, len(r.nodes))
	for id, node := range r.nodes {
		nodes[id] = node
	}
	links := make(map[string]stream.GraphLink, len(r.links))
	for id, link := range r.links {
		links[id] = link
	}
	return UnderstandingState{
		Run:         r.run,
		Nodes:       nodes,
		Links:       links,
		Progress:    r.progress,
		CurrentFile: r.currentFile,
		LastMessage: r.lastMessage,
		Revision:    r.revision,
	}
}

// Clear discards all accumulated graph data, matching the delete-all
// contract. Only legal outside an active run.
func (r *UnderstandingReducer) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run.active() {
		return ErrRunActive
	}
	r.run = newRun()
	r.nodes = make(map[string]stream.GraphNode)
	r.links = make(map[string]stream.GraphLink)
	r.progress = 0
	r.currentFile = ""
	r.lastMessage = ""
	r.revision++
	return nil
}
