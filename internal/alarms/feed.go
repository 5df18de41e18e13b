// Package alarms subscribes to the backend's alarm notification stream and
// fans events out to UI consumers. The feed reconnects unconditionally after
// a fixed delay on any error — no backoff, no attempt cap. That mirrors the
// origin client; a dead backend keeps the loop retrying every cycle.
package alarms

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common/telemetry"
)

const (
	reconnectDelay  = 5 * time.Second
	maxAlarmHistory = 200
	subscriberSlack = 16
)

// Named events the backend emits on /events/stream/alarms.
const (
	eventConnected = "connected"
	eventAlarm     = "alarm"
	eventHeartbeat = "heartbeat"
)

// Alarm is one notification surfaced to the UI.
type Alarm struct {
	ID        string          `json:"id,omitempty"`
	Severity  string          `json:"severity,omitempty"`
	Message   string          `json:"message,omitempty"`
	Source    string          `json:"source,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Feed owns the SSE connection and the alarm history ring.
type Feed struct {
	url        string
	sessionID  string
	httpClient *http.Client
	delay      time.Duration

	mu            sync.Mutex
	history       []Alarm
	subscribers   map[int]chan Alarm
	nextSub       int
	lastHeartbeat time.Time
	connected     bool
}

// NewFeed constructs a feed for the given SSE endpoint. The HTTP client
// carries no overall timeout; the connection is expected to live until the
// server or the context ends it.
func NewFeed(url, sessionID string) *Feed {
	return &Feed{
		url:         url,
		sessionID:   sessionID,
		httpClient:  &http.Client{},
		delay:       reconnectDelay,
		subscribers: make(map[int]chan Alarm),
	}
}

// Run blocks until the context is canceled, maintaining the subscription and
// reconnecting after the fixed delay on every failure.
func (f *Feed) Run(ctx context.Context) {
	logger := common.Logger()
	for {
		if err := f.consume(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("alarms: stream interrupted", "error", err, "retry_in", f.delay)
		}
		f.setConnected(false)
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.delay):
			telemetry.RecordAlarmReconnect()
		}
	}
}

func (f *Feed) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Session-UUID", f.sessionID)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	p := &parser{}
	buf := make([]byte, 16<<10)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, evt := range p.feed(buf[:n]) {
				f.handle(evt)
			}
		}
		if err != nil {
			return err
		}
	}
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}

func (f *Feed) handle(evt rawEvent) {
	logger := common.Logger()
	switch evt.Name {
	case eventConnected:
		f.setConnected(true)
		logger.Info("alarms: subscription established")
	case eventHeartbeat:
		f.mu.Lock()
		f.lastHeartbeat = time.Now().UTC()
		f.mu.Unlock()
	case eventAlarm:
		var alarm Alarm
		if err := json.Unmarshal([]byte(evt.Data), &alarm); err != nil {
			logger.Warn("alarms: malformed alarm payload", "error", err)
			return
		}
		if alarm.Timestamp.IsZero() {
			alarm.Timestamp = time.Now().UTC()
		}
		telemetry.RecordAlarmEvent()
		f.record(alarm)
	default:
		// Unknown named events are ignored for forward compatibility.
	}
}

func (f *Feed) record(alarm Alarm) {
	f.mu.Lock()
	f.history = append(f.history, alarm)
	if len(f.history) > maxAlarmHistory {
		f.history = f.history[len(f.history)-maxAlarmHistory:]
	}
	for _, sub := range f.subscribers {
		select {
		case sub <- alarm:
		default:
			// Slow subscriber; drop rather than stall the feed.
		}
	}
	f.mu.Unlock()
}

func (f *Feed) setConnected(up bool) {
	f.mu.Lock()
	f.connected = up
	f.mu.Unlock()
}

// Connected reports whether the subscription is currently established.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// History returns a copy of the retained alarms, oldest first.
func (f *Feed) History() []Alarm {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Alarm, len(f.history))
	copy(out, f.history)
	return out
}

// Subscribe registers a live alarm channel; the returned func unsubscribes.
func (f *Feed) Subscribe() (<-chan Alarm, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan Alarm, subscriberSlack)
	f.subscribers[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if existing, ok := f.subscribers[id]; ok {
			delete(f.subscribers, id)
			close(existing)
		}
	}
}
