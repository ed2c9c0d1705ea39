// Package events defines the scrubber's event model and the broadcast
// hub that fans events out to subscribers. Delivery is best-effort
// notification: a subscriber that falls behind loses the oldest
// buffered events, never blocks the publisher. The durable audit log
// is the system of record.
package events

import (
	"time"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// Kind identifies what happened.
type Kind string

const (
	KindStarted            Kind = "started"
	KindStopped            Kind = "stopped"
	KindSleeping           Kind = "sleeping"
	KindCycleStarted       Kind = "cycle_started"
	KindCycleCompleted     Kind = "cycle_completed"
	KindTracksFound        Kind = "tracks_found"
	KindTrackProcessed     Kind = "track_processed"
	KindTrackEdited        Kind = "track_edited"
	KindTrackEditFailed    Kind = "track_edit_failed"
	KindTrackSkipped       Kind = "track_skipped"
	KindPendingEditCreated Kind = "pending_edit_created"
	KindRuleProposed       Kind = "rule_proposed"
	KindAnchorUpdated      Kind = "anchor_updated"
	KindError              Kind = "error"
	KindInfo               Kind = "info"
)

// Event is one entry in the scrubber's event stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`

	// Anchor is set on anchor_updated events.
	Anchor int64 `json:"anchor,omitempty"`
	// RunID and BatchID correlate per-track events with the cycle and
	// batch that produced them.
	RunID   string `json:"run_id,omitempty"`
	BatchID string `json:"batch_id,omitempty"`

	Track *scrobble.Track `json:"track,omitempty"`
	Edit  *scrobble.Edit  `json:"edit,omitempty"`
	Error string          `json:"error,omitempty"`
}

// New creates an event stamped with the current time.
func New(kind Kind, message string) Event {
	return Event{Timestamp: time.Now().UTC(), Kind: kind, Message: message}
}

// WithTrack attaches track context.
func (e Event) WithTrack(t scrobble.Track) Event {
	e.Track = &t
	return e
}

// WithEdit attaches edit context.
func (e Event) WithEdit(ed scrobble.Edit) Event {
	e.Edit = &ed
	return e
}

// WithRun attaches run/batch correlation IDs.
func (e Event) WithRun(runID, batchID string) Event {
	e.RunID = runID
	e.BatchID = batchID
	return e
}

// WithError attaches an error message.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithAnchor attaches the anchor value.
func (e Event) WithAnchor(anchor int64) Event {
	e.Anchor = anchor
	return e
}
