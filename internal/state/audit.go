package state

import (
	"database/sql"
	"encoding/json"
	"time"

	dbutil "github.com/llehouerou/scrubber/internal/db"
	"github.com/llehouerou/scrubber/internal/events"
)

// StoredEvent is an audit event read back from the database.
type StoredEvent struct {
	ID int64
	events.Event
}

// AppendEvents writes a batch of audit events atomically.
func (m *Manager) AppendEvents(evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	return dbutil.WithTx(m.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO audit_events (timestamp, kind, message, run_id, batch_id, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range evts {
			payload, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(
				e.Timestamp.Unix(), string(e.Kind), e.Message,
				e.RunID, e.BatchID, string(payload),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendEvent writes a single audit event.
func (m *Manager) AppendEvent(e events.Event) error {
	return m.AppendEvents([]events.Event{e})
}

// RecentEvents returns the most recent n audit events, newest first.
func (m *Manager) RecentEvents(n int) ([]StoredEvent, error) {
	rows, err := m.db.Query(`
		SELECT id, payload FROM audit_events
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsByKind returns the most recent n audit events of a kind,
// newest first.
func (m *Manager) EventsByKind(kind events.Kind, n int) ([]StoredEvent, error) {
	rows, err := m.db.Query(`
		SELECT id, payload FROM audit_events
		WHERE kind = ?
		ORDER BY id DESC
		LIMIT ?
	`, string(kind), n)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsSince returns all audit events at or after the given time,
// oldest first.
func (m *Manager) EventsSince(since time.Time) ([]StoredEvent, error) {
	rows, err := m.db.Query(`
		SELECT id, payload FROM audit_events
		WHERE timestamp >= ?
		ORDER BY id ASC
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// PruneEvents deletes audit events older than maxAge.
func (m *Manager) PruneEvents(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	_, err := m.db.Exec(`DELETE FROM audit_events WHERE timestamp < ?`, cutoff)
	return err
}

func scanEvents(rows *sql.Rows) ([]StoredEvent, error) {
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var s StoredEvent
		var payload string
		if err := rows.Scan(&s.ID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &s.Event); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
