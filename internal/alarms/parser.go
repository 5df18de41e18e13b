package alarms

import (
	"bytes"
	"strings"
)

// rawEvent is one assembled SSE event: the event: name plus the joined data:
// payload.
type rawEvent struct {
	Name string
	Data string
}

// parser maintains state across chunks to handle SSE lines and events split
// at arbitrary byte boundaries.
type parser struct {
	buf       []byte
	eventName string
	dataLines []string
}

// feed processes raw bytes from the stream and yields complete events. An
// event is emitted on the blank separator line; unknown fields and comment
// lines are skipped.
func (p *parser) feed(chunk []byte) []rawEvent {
	p.buf = append(p.buf, chunk...)
	var events []rawEvent
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx == -1 {
			break
		}
		line := strings.TrimRight(string(p.buf[:idx]), "\r")
		p.buf = p.buf[idx+1:]

		if line == "" {
			if len(p.dataLines) > 0 || p.eventName != "" {
				events = append(events, rawEvent{
					Name: p.eventName,
					Data: strings.Join(p.dataLines, "\n"),
				})
			}
			p.eventName = ""
			p.dataLines = nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			p.eventName = strings.TrimSpace(name)
			continue
		}
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			p.dataLines = append(p.dataLines, strings.TrimPrefix(data, " "))
			continue
		}
	}
	return events
}
