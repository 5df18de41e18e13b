package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
)

const maxActivityEntries = 500

// ActivityEntry is one line of the console activity feed shown under the
// operation panels.
type ActivityEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Manager owns the per-session reducer set: one parse, one understanding and
// one convert run. The three reducers share no mutable state and may consume
// their streams concurrently; the manager only adds the activity feed and the
// delete-all reset.
type Manager struct {
	parse         *ParseReducer
	understanding *UnderstandingReducer
	convert       *ConvertReducer

	logMu sync.Mutex
	logs  []ActivityEntry
}

func NewManager() *Manager {
	return &Manager{
		parse:         NewParseReducer(),
		understanding: NewUnderstandingReducer(),
		convert:       NewConvertReducer(),
	}
}

func (m *Manager) Parse() *ParseReducer { return m.parse }

func (m *Manager) Understanding() *UnderstandingReducer { return m.understanding }

func (m *Manager) Convert() *ConvertReducer { return m.convert }

// AppendLog records one activity line and mirrors it to the shared logger.
func (m *Manager) AppendLog(level, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	entry := ActivityEntry{Time: time.Now().UTC(), Level: level, Message: text}
	m.logMu.Lock()
	m.logs = append(m.logs, entry)
	if len(m.logs) > maxActivityEntries {
		m.logs = m.logs[len(m.logs)-maxActivityEntries:]
	}
	m.logMu.Unlock()
	logger := common.Logger()
	switch level {
	case "error":
		logger.Error(text)
	case "warn":
		logger.Warn(text)
	case "debug":
		logger.Debug(text)
	default:
		logger.Info(text)
	}
}

// Logs returns a copy of the activity feed, oldest first.
func (m *Manager) Logs() []ActivityEntry {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	entries := make([]ActivityEntry, len(m.logs))
	copy(entries, m.logs)
	return entries
}

// Reset clears every reducer, matching the backend delete-all contract. It
// refuses while any stream is still running.
func (m *Manager) Reset() error {
	if err := m.parse.Clear(); err != nil {
		return fmt.Errorf("reset parse state: %w", err)
	}
	if err := m.understanding.Clear(); err != nil {
		return fmt.Errorf("reset graph state: %w", err)
	}
	if err := m.convert.Clear(); err != nil {
		return fmt.Errorf("reset convert state: %w", err)
	}
	m.logMu.Lock()
	m.logs = nil
	m.logMu.Unlock()
	return nil
}
