package stream

import (
	"bytes"
	"context"
	"testing"
)

func TestConsumeDispatchesInOrder(t *testing.T) {
	var events []Event
	err := Consume(context.Background(), bytes.NewReader([]byte(samplePayload)), func(evt Event) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != EventMessage || events[0].Content != "a" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != EventData {
		t.Fatalf("expected data event second, got %s", events[1].Type)
	}
	payload, err := events[1].Graph()
	if err != nil {
		t.Fatalf("graph payload: %v", err)
	}
	if len(payload.Graph.Nodes) != 1 || payload.Graph.Nodes[0].ID != "1" {
		t.Fatalf("unexpected graph fragment: %+v", payload.Graph)
	}
	if events[2].Type != EventComplete {
		t.Fatalf("expected complete last, got %s", events[2].Type)
	}
}

func TestConsumeSkipsMalformedLine(t *testing.T) {
	payload := "{\"type\":\n{\"type\":\"message\",\"content\":\"ok\"}\n{\"type\":\"complete\"}\n"
	var types []string
	err := Consume(context.Background(), bytes.NewReader([]byte(payload)), func(evt Event) {
		types = append(types, evt.Type)
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if len(types) != 2 || types[0] != EventMessage || types[1] != EventComplete {
		t.Fatalf("malformed line should be skipped, got %v", types)
	}
}

func TestConsumeStopsAfterTerminalEvent(t *testing.T) {
	payload := "{\"type\":\"error\",\"content\":\"boom\",\"traceId\":\"t-1\"}\n{\"type\":\"message\",\"content\":\"late\"}\n"
	var events []Event
	err := Consume(context.Background(), bytes.NewReader([]byte(payload)), func(evt Event) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected read loop to stop after error event, got %d events", len(events))
	}
	info := events[0].ErrorInfo()
	if info.Content != "boom" || info.TraceID != "t-1" {
		t.Fatalf("unexpected error payload: %+v", info)
	}
}

func TestConsumeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Consume(ctx, bytes.NewReader([]byte(samplePayload)), func(Event) {
		t.Fatalf("handler should not run after cancellation")
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
}

func TestParseEventUnknownTypeIsOpaque(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"type":"telemetry","payload":{"x":1}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evt.Known() {
		t.Fatalf("expected unknown discriminator to be opaque")
	}
	if evt.Terminal() {
		t.Fatalf("opaque event must not terminate the stream")
	}
}

func TestConvertPayloadVariants(t *testing.T) {
	code, err := ParseEvent([]byte(`{"type":"data","file_type":"code","file_name":"Main.java","code":"class Main {}","language":"java"}`))
	if err != nil {
		t.Fatalf("parse code event: %v", err)
	}
	payload, err := code.Convert()
	if err != nil {
		t.Fatalf("convert payload: %v", err)
	}
	if payload.FileType != ConvertFileTypeCode || payload.FileName != "Main.java" || payload.Language != "java" {
		t.Fatalf("unexpected code payload: %+v", payload)
	}

	diagram, err := ParseEvent([]byte(`{"type":"data","file_type":"mermaid_diagram","diagram":"classDiagram","class_count":3,"relationship_count":2}`))
	if err != nil {
		t.Fatalf("parse diagram event: %v", err)
	}
	payload, err = diagram.Convert()
	if err != nil {
		t.Fatalf("diagram payload: %v", err)
	}
	if payload.FileType != ConvertFileTypeDiagram || payload.ClassCount != 3 {
		t.Fatalf("unexpected diagram payload: %+v", payload)
	}
}
