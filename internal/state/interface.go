package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/scrubber/internal/events"
	"github.com/llehouerou/scrubber/internal/scrobble"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB
	GetSession() (*Session, error)
	SaveSession(username, sessionKey string) error
	DeleteSession() error
	AppendEvent(e events.Event) error
	AppendEvents(evts []events.Event) error
	RecentEvents(n int) ([]StoredEvent, error)
	EventsByKind(kind events.Kind, n int) ([]StoredEvent, error)
	EventsSince(since time.Time) ([]StoredEvent, error)
	PruneEvents(maxAge time.Duration) error
	AddFailedEdit(edit scrobble.Edit, errMsg string) error
	GetFailedEdits() ([]FailedEdit, error)
	DeleteFailedEdit(id int64) error
	UpdateFailedEditAttempt(id int64, errMsg string) error
	DeleteOldFailedEdits(maxAge time.Duration) error
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
