package state

import (
	"database/sql"
	"encoding/json"
	"time"

	dbutil "github.com/llehouerou/scrubber/internal/db"
	"github.com/llehouerou/scrubber/internal/scrobble"
)

// FailedEdit is an edit whose submission failed and is queued for
// retry on a later cycle.
type FailedEdit struct {
	ID        int64
	Edit      scrobble.Edit
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// AddFailedEdit queues an edit for later retry.
func (m *Manager) AddFailedEdit(edit scrobble.Edit, errMsg string) error {
	payload, err := json.Marshal(edit)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	_, err = m.db.Exec(`
		INSERT INTO failed_edits
		(artist, track, album, timestamp, edit, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, edit.ArtistNameOriginal, edit.TrackNameOriginal, edit.AlbumNameOriginal,
		edit.Timestamp, string(payload), 1, errMsg, now)
	return err
}

// GetFailedEdits returns all queued edits ordered by creation time.
func (m *Manager) GetFailedEdits() ([]FailedEdit, error) {
	rows, err := m.db.Query(`
		SELECT id, edit, attempts, last_error, created_at
		FROM failed_edits
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edits []FailedEdit
	for rows.Next() {
		var f FailedEdit
		var payload string
		var lastError sql.NullString
		var createdAt int64

		if err := rows.Scan(&f.ID, &payload, &f.Attempts, &lastError, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &f.Edit); err != nil {
			return nil, err
		}

		f.LastError = dbutil.NullStringValue(lastError)
		f.CreatedAt = time.Unix(createdAt, 0)

		edits = append(edits, f)
	}

	return edits, rows.Err()
}

// DeleteFailedEdit removes a successfully retried edit.
func (m *Manager) DeleteFailedEdit(id int64) error {
	_, err := m.db.Exec(`DELETE FROM failed_edits WHERE id = ?`, id)
	return err
}

// UpdateFailedEditAttempt increments attempt count and sets error message.
func (m *Manager) UpdateFailedEditAttempt(id int64, errMsg string) error {
	_, err := m.db.Exec(`
		UPDATE failed_edits
		SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`, errMsg, id)
	return err
}

// DeleteOldFailedEdits removes queued edits older than the given duration.
func (m *Manager) DeleteOldFailedEdits(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	_, err := m.db.Exec(`DELETE FROM failed_edits WHERE created_at < ?`, cutoff)
	return err
}
