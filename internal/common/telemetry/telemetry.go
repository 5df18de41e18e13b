package telemetry

import (
	"expvar"
	"sync"
	"time"
)

var (
	initOnce sync.Once

	streamLinesTotal    *expvar.Int
	streamDecodeErrors  *expvar.Int
	streamEventsTotal   *expvar.Map
	streamActive        *expvar.Int
	graphNodesUpserted  *expvar.Int
	graphLinksUpserted  *expvar.Int
	convertFileUpserts  *expvar.Int
	alarmReconnects     *expvar.Int
	alarmEventsTotal    *expvar.Int
	gatewayRequestTotal *expvar.Map
	gatewayLatencyMS    *expvar.Map
)

func ensureInit() {
	initOnce.Do(func() {
		streamLinesTotal = expvar.NewInt("robo_stream_lines_total")
		streamDecodeErrors = expvar.NewInt("robo_stream_decode_errors")
		streamEventsTotal = expvar.NewMap("robo_stream_events_total")
		streamActive = expvar.NewInt("robo_streams_active")
		graphNodesUpserted = expvar.NewInt("robo_graph_nodes_upserted")
		graphLinksUpserted = expvar.NewInt("robo_graph_links_upserted")
		convertFileUpserts = expvar.NewInt("robo_convert_file_upserts")
		alarmReconnects = expvar.NewInt("robo_alarm_reconnects")
		alarmEventsTotal = expvar.NewInt("robo_alarm_events_total")
		gatewayRequestTotal = expvar.NewMap("robo_gateway_requests_total")
		gatewayLatencyMS = expvar.NewMap("robo_gateway_latency_ms")
	})
}

// RecordStreamLine counts one decoded NDJSON line.
func RecordStreamLine() {
	ensureInit()
	streamLinesTotal.Add(1)
}

// RecordDecodeError counts a line that failed JSON parsing and was skipped.
func RecordDecodeError() {
	ensureInit()
	streamDecodeErrors.Add(1)
}

// RecordStreamEvent counts a dispatched event by its type discriminator.
func RecordStreamEvent(eventType string) {
	ensureInit()
	if eventType == "" {
		eventType = "unknown"
	}
	streamEventsTotal.Add(eventType, 1)
}

// StreamStarted and StreamFinished track the number of in-flight streams.
func StreamStarted() {
	ensureInit()
	streamActive.Add(1)
}

func StreamFinished() {
	ensureInit()
	streamActive.Add(-1)
}

// RecordGraphUpsert counts node and link upserts applied by the
// understanding reducer.
func RecordGraphUpsert(nodes, links int) {
	ensureInit()
	if nodes > 0 {
		graphNodesUpserted.Add(int64(nodes))
	}
	if links > 0 {
		graphLinksUpserted.Add(int64(links))
	}
}

// RecordConvertUpsert counts one converted-file upsert.
func RecordConvertUpsert() {
	ensureInit()
	convertFileUpserts.Add(1)
}

// RecordAlarmReconnect counts one reconnect attempt of the alarm feed.
func RecordAlarmReconnect() {
	ensureInit()
	alarmReconnects.Add(1)
}

// RecordAlarmEvent counts one alarm delivered to subscribers.
func RecordAlarmEvent() {
	ensureInit()
	alarmEventsTotal.Add(1)
}

// RecordGatewayRequest counts one backend call and its latency per operation.
func RecordGatewayRequest(operation string, duration time.Duration) {
	ensureInit()
	if operation == "" {
		operation = "unknown"
	}
	gatewayRequestTotal.Add(operation, 1)
	gatewayLatencyMS.Add(operation, duration.Milliseconds())
}
