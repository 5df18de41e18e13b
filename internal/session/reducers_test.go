package session

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/stream"
)

func mustEvent(t *testing.T, line string) stream.Event {
	t.Helper()
	evt, err := stream.ParseEvent([]byte(line))
	if err != nil {
		t.Fatalf("parse event %q: %v", line, err)
	}
	return evt
}

func TestUnderstandingScenario(t *testing.T) {
	payload := "{\"type\":\"message\",\"content\":\"a\"}\n" +
		"{\"type\":\"data\",\"graph\":{\"nodes\":[{\"id\":\"1\"}],\"links\":[]}}\n" +
		"{\"type\":\"complete\"}\n"
	reducer := NewUnderstandingReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	var order []string
	err := stream.Consume(context.Background(), bytes.NewReader([]byte(payload)), func(evt stream.Event) {
		order = append(order, evt.Type)
		reducer.Apply(evt)
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(order) != 3 || order[0] != "message" || order[1] != "data" || order[2] != "complete" {
		t.Fatalf("unexpected event order: %v", order)
	}
	state := reducer.Snapshot()
	if state.Run.Status != StatusCompleted {
		t.Fatalf("expected completed run, got %s", state.Run.Status)
	}
	if len(state.Nodes) != 1 {
		t.Fatalf("expected one node, got %d", len(state.Nodes))
	}
	if _, ok := state.Nodes["1"]; !ok {
		t.Fatalf("expected node map keyed by id, got %+v", state.Nodes)
	}
}

func TestGraphUpsertIdempotence(t *testing.T) {
	fragment := mustEvent(t, `{"type":"data","graph":{"nodes":[{"id":"a"},{"id":"b"}],"links":[{"id":"l1","from":"a","to":"b"}]}}`)
	reducer := NewUnderstandingReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reducer.Apply(fragment)
	once := reducer.Snapshot()
	reducer.Apply(fragment)
	twice := reducer.Snapshot()
	if len(once.Nodes) != 2 || len(twice.Nodes) != 2 {
		t.Fatalf("expected keyed overwrite, got %d then %d nodes", len(once.Nodes), len(twice.Nodes))
	}
	if len(once.Links) != 1 || len(twice.Links) != 1 {
		t.Fatalf("expected keyed overwrite, got %d then %d links", len(once.Links), len(twice.Links))
	}
}

func TestUnderstandingRetainsGraphAcrossRuns(t *testing.T) {
	reducer := NewUnderstandingReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reducer.Apply(mustEvent(t, `{"type":"data","graph":{"nodes":[{"id":"a"}],"links":[]}}`))
	reducer.FailTransport(errors.New("connection reset"))
	if got := reducer.Snapshot(); got.Run.Status != StatusFailed || len(got.Nodes) != 1 {
		t.Fatalf("failed run should keep prior nodes: %+v", got.Run)
	}
	if err := reducer.Begin(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	reducer.Apply(mustEvent(t, `{"type":"data","graph":{"nodes":[{"id":"b"}],"links":[]}}`))
	reducer.Apply(mustEvent(t, `{"type":"complete"}`))
	state := reducer.Snapshot()
	if len(state.Nodes) != 2 {
		t.Fatalf("expected retained+merged nodes, got %d", len(state.Nodes))
	}
}

func TestTerminalStateRejectsFurtherEvents(t *testing.T) {
	reducer := NewUnderstandingReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reducer.Apply(mustEvent(t, `{"type":"error","content":"boom","errorType":"analysis","traceId":"t-9"}`))
	state := reducer.Snapshot()
	if state.Run.Status != StatusFailed || state.Run.TraceID != "t-9" {
		t.Fatalf("expected failed run with trace id, got %+v", state.Run)
	}
	reducer.Apply(mustEvent(t, `{"type":"data","graph":{"nodes":[{"id":"late"}],"links":[]}}`))
	reducer.Apply(mustEvent(t, `{"type":"complete"}`))
	after := reducer.Snapshot()
	if after.Run.Status != StatusFailed {
		t.Fatalf("terminal status must not change, got %s", after.Run.Status)
	}
	if _, ok := after.Nodes["late"]; ok {
		t.Fatalf("events after terminal state must not mutate data")
	}
}

func TestBeginRefusedWhileRunning(t *testing.T) {
	reducer := NewConvertReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := reducer.Begin(); !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}
}

func TestConvertFileUpsertLastWins(t *testing.T) {
	reducer := NewConvertReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reducer.Apply(mustEvent(t, `{"type":"data","file_type":"code","file_name":"Svc.java","code":"v1","language":"java"}`))
	reducer.Apply(mustEvent(t, `{"type":"data","file_type":"code","file_name":"Svc.java","code":"v2","language":"java"}`))
	state := reducer.Snapshot()
	if len(state.Files) != 1 {
		t.Fatalf("expected exactly one entry per file name, got %d", len(state.Files))
	}
	if state.Files["Svc.java"].Content != "v2" {
		t.Fatalf("expected later emission to win, got %q", state.Files["Svc.java"].Content)
	}
}

func TestConvertStatusAdvancesStepCounter(t *testing.T) {
	reducer := NewConvertReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reducer.Apply(mustEvent(t, `{"type":"status","content":"analyzing"}`))
	reducer.Apply(mustEvent(t, `{"type":"status","content":"generating"}`))
	reducer.Apply(mustEvent(t, `{"type":"data","file_type":"mermaid_diagram","diagram":"classDiagram","class_count":2,"relationship_count":1}`))
	reducer.Apply(mustEvent(t, `{"type":"complete","content":"done"}`))
	state := reducer.Snapshot()
	if state.Steps != 2 || state.LastStatus != "generating" {
		t.Fatalf("unexpected step state: steps=%d last=%q", state.Steps, state.LastStatus)
	}
	if state.Diagram == nil || state.Diagram.ClassCount != 2 {
		t.Fatalf("expected diagram payload, got %+v", state.Diagram)
	}
	if state.Run.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", state.Run.Status)
	}
}

func TestParseRunResetsPriorResults(t *testing.T) {
	reducer := NewParseReducer()
	if err := reducer.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reducer.Complete([]ParsedFile{{System: "billing", FileName: "A.cbl", AnalysisResult: []byte(`{"ok":true}`)}})
	if state := reducer.Snapshot(); len(state.Files) != 1 || state.Run.Status != StatusCompleted {
		t.Fatalf("unexpected first run state: %+v", state.Run)
	}
	if err := reducer.Begin(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if state := reducer.Snapshot(); len(state.Files) != 0 {
		t.Fatalf("fresh parse run must reset results, got %d", len(state.Files))
	}
	reducer.Complete([]ParsedFile{{System: "billing", FileName: "B.cbl", AnalysisResult: []byte(`{}`)}})
	state := reducer.Snapshot()
	if len(state.Files) != 1 || state.Files[0].FileName != "B.cbl" {
		t.Fatalf("unexpected results after reset: %+v", state.Files)
	}
}

func TestManagerResetClearsEverything(t *testing.T) {
	mgr := NewManager()
	if err := mgr.Understanding().Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	mgr.Understanding().Apply(mustEvent(t, `{"type":"data","graph":{"nodes":[{"id":"n"}],"links":[]}}`))
	if err := mgr.Reset(); !errors.Is(err, ErrRunActive) {
		t.Fatalf("reset must refuse while a stream runs, got %v", err)
	}
	mgr.Understanding().Apply(mustEvent(t, `{"type":"complete"}`))
	mgr.AppendLog("info", "conversion finished for %s", "billing")
	if err := mgr.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if state := mgr.Understanding().Snapshot(); len(state.Nodes) != 0 || state.Run.Status != StatusIdle {
		t.Fatalf("expected cleared graph state, got %+v", state.Run)
	}
	if logs := mgr.Logs(); len(logs) != 0 {
		t.Fatalf("expected cleared activity feed, got %d entries", len(logs))
	}
}
