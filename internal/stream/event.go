package stream

import (
	"encoding/json"
	"strings"
)

// Event type discriminators emitted by the parsing, understanding and convert
// streams. Anything else is treated as an opaque event and ignored by
// consumers, never rejected.
const (
	EventMessage  = "message"
	EventStatus   = "status"
	EventData     = "data"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is one decoded NDJSON frame. Only the discriminator and the optional
// content field are decoded eagerly; operation-specific payloads are extracted
// lazily through the typed views below so unknown fields pass through
// untouched.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	raw json.RawMessage
}

// ParseEvent decodes a single NDJSON line into an Event. The raw line is
// retained for the typed payload views.
func ParseEvent(line []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(line, &evt); err != nil {
		return Event{}, err
	}
	evt.Type = strings.TrimSpace(evt.Type)
	evt.raw = append(json.RawMessage(nil), line...)
	return evt, nil
}

// Terminal reports whether the event ends its stream. Both complete and error
// may or may not carry content.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Known reports whether the discriminator is one this client understands.
func (e Event) Known() bool {
	switch e.Type {
	case EventMessage, EventStatus, EventData, EventComplete, EventError:
		return true
	}
	return false
}

// Raw returns the full frame as received.
func (e Event) Raw() json.RawMessage {
	return e.raw
}

// GraphNode is one node of an incrementally streamed dependency graph.
// Repeated ids overwrite earlier emissions.
type GraphNode struct {
	ID         string                 `json:"id"`
	Caption    string                 `json:"caption,omitempty"`
	Labels     []string               `json:"labels,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// GraphLink is one relationship of the streamed graph, keyed by id.
type GraphLink struct {
	ID         string                 `json:"id"`
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Type       string                 `json:"type,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// GraphFragment is the incremental node/link delta carried by understanding
// data events.
type GraphFragment struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// GraphPayload is the data-event payload of the understanding stream.
type GraphPayload struct {
	Graph            GraphFragment `json:"graph"`
	AnalysisProgress float64       `json:"analysis_progress"`
	CurrentFile      string        `json:"current_file"`
}

// Graph extracts the understanding payload from a data event.
func (e Event) Graph() (GraphPayload, error) {
	var payload GraphPayload
	if err := json.Unmarshal(e.raw, &payload); err != nil {
		return GraphPayload{}, err
	}
	return payload, nil
}

// Convert data events carry either generated code or a mermaid class diagram,
// discriminated by file_type.
const (
	ConvertFileTypeCode    = "code"
	ConvertFileTypeDiagram = "mermaid_diagram"
)

// ConvertPayload is the data-event payload of the convert stream.
type ConvertPayload struct {
	FileType          string `json:"file_type"`
	FileName          string `json:"file_name"`
	Code              string `json:"code"`
	Language          string `json:"language"`
	Diagram           string `json:"diagram"`
	ClassCount        int    `json:"class_count"`
	RelationshipCount int    `json:"relationship_count"`
}

// Convert extracts the convert payload from a data event.
func (e Event) Convert() (ConvertPayload, error) {
	var payload ConvertPayload
	if err := json.Unmarshal(e.raw, &payload); err != nil {
		return ConvertPayload{}, err
	}
	return payload, nil
}

// ErrorInfo is the payload of an explicit error event. TraceID correlates the
// failure with backend support logs.
type ErrorInfo struct {
	Content   string `json:"content"`
	ErrorType string `json:"errorType"`
	TraceID   string `json:"traceId"`
}

// ErrorInfo extracts the error payload; safe to call on any event.
func (e Event) ErrorInfo() ErrorInfo {
	var info ErrorInfo
	if len(e.raw) > 0 {
		_ = json.Unmarshal(e.raw, &info)
	}
	if info.Content == "" {
		info.Content = e.Content
	}
	return info
}
