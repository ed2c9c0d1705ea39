package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/scrubber/internal/events"
	"github.com/llehouerou/scrubber/internal/scrobble"
)

// Mock is a test double for Manager.
type Mock struct {
	session *Session
	events  []StoredEvent
	failed  []FailedEdit
	nextID  int64
	closed  bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) GetSession() (*Session, error) {
	return m.session, nil
}

func (m *Mock) SaveSession(username, sessionKey string) error {
	m.session = &Session{Username: username, SessionKey: sessionKey, LinkedAt: time.Now()}
	return nil
}

func (m *Mock) DeleteSession() error {
	m.session = nil
	return nil
}

func (m *Mock) AppendEvent(e events.Event) error {
	return m.AppendEvents([]events.Event{e})
}

func (m *Mock) AppendEvents(evts []events.Event) error {
	for _, e := range evts {
		m.nextID++
		m.events = append(m.events, StoredEvent{ID: m.nextID, Event: e})
	}
	return nil
}

func (m *Mock) RecentEvents(n int) ([]StoredEvent, error) {
	var out []StoredEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *Mock) EventsByKind(kind events.Kind, n int) ([]StoredEvent, error) {
	var out []StoredEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < n; i-- {
		if m.events[i].Kind == kind {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *Mock) EventsSince(since time.Time) ([]StoredEvent, error) {
	var out []StoredEvent
	for _, e := range m.events {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Mock) PruneEvents(_ time.Duration) error { return nil }

func (m *Mock) AddFailedEdit(edit scrobble.Edit, errMsg string) error {
	m.nextID++
	m.failed = append(m.failed, FailedEdit{
		ID: m.nextID, Edit: edit, Attempts: 1, LastError: errMsg, CreatedAt: time.Now(),
	})
	return nil
}

func (m *Mock) GetFailedEdits() ([]FailedEdit, error) {
	return m.failed, nil
}

func (m *Mock) DeleteFailedEdit(id int64) error {
	for i, f := range m.failed {
		if f.ID == id {
			m.failed = append(m.failed[:i], m.failed[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mock) UpdateFailedEditAttempt(id int64, errMsg string) error {
	for i := range m.failed {
		if m.failed[i].ID == id {
			m.failed[i].Attempts++
			m.failed[i].LastError = errMsg
			break
		}
	}
	return nil
}

func (m *Mock) DeleteOldFailedEdits(_ time.Duration) error { return nil }

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) SetSession(s *Session) { m.session = s }

func (m *Mock) Events() []StoredEvent { return m.events }

func (m *Mock) IsClosed() bool { return m.closed }

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
