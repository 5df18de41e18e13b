package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func (s *Server) handleAlarmHistory(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("alarm subscription disabled"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected": s.feed.Connected(),
		"alarms":    s.feed.History(),
	})
}

// handleAlarmStream relays the live alarm feed to the browser as SSE, the
// same named-event shape the backend uses. The relay ends when the client
// disconnects.
func (s *Server) handleAlarmStream(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("alarm subscription disabled"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	alarms, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case alarm, ok := <-alarms:
			if !ok {
				return
			}
			data, err := json.Marshal(alarm)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: alarm\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
