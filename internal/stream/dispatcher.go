package stream

import (
	"context"
	"io"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common/telemetry"
)

// Handler receives every event of one stream, in arrival order, exactly once
// per line.
type Handler func(Event)

// Consume drives one NDJSON response body to completion: decode lines, parse
// events, dispatch to the handler. It stops after delivering a terminal
// complete/error event, on context cancellation, or on a transport error.
//
// A line that fails JSON parsing is logged and skipped; subsequent lines keep
// flowing. This tolerates malformed diagnostic lines without losing the rest
// of the stream.
func Consume(ctx context.Context, body io.Reader, handler Handler) error {
	logger := common.Logger()
	telemetry.StreamStarted()
	defer telemetry.StreamFinished()

	decoder := NewDecoder(body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := decoder.Next()
		if err != nil {
			if err == ErrDone {
				return nil
			}
			return err
		}
		telemetry.RecordStreamLine()
		evt, parseErr := ParseEvent(line)
		if parseErr != nil {
			telemetry.RecordDecodeError()
			logger.Warn("stream: skipping malformed line", "error", parseErr, "bytes", len(line))
			continue
		}
		telemetry.RecordStreamEvent(evt.Type)
		handler(evt)
		if evt.Terminal() {
			return nil
		}
	}
}
