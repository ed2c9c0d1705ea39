// Package storage persists the scrubber's durable state: the
// processing anchor, saved rewrite rules, pending edits, pending rules
// and settings. Each document has an independent save/load pair; a
// save replaces the whole document. The contract assumes a single
// writer.
package storage

import (
	"time"

	"github.com/llehouerou/scrubber/internal/rewrite"
	"github.com/llehouerou/scrubber/internal/scrobble"
)

// TimestampState is the processing anchor. Tracks at or before the
// anchor are considered already processed. A zero anchor means no
// history has been processed yet.
type TimestampState struct {
	Anchor    int64     `json:"anchor"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// PendingEdit is a proposed correction awaiting manual confirmation.
// It survives process restarts.
type PendingEdit struct {
	ID        string        `json:"id"`
	Edit      scrobble.Edit `json:"edit"`
	Provider  string        `json:"provider,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// PendingRule is a rewrite rule proposed by a provider but not yet
// adopted into the active rule set.
type PendingRule struct {
	ID        string       `json:"id"`
	Rule      rewrite.Rule `json:"rule"`
	Provider  string       `json:"provider,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Settings controls how suggestions are resolved.
type Settings struct {
	// RequireConfirmation routes every suggestion to the pending
	// queue instead of applying it.
	RequireConfirmation bool `json:"require_confirmation"`
	// RequireConfirmationForEdits applies only to edit suggestions.
	RequireConfirmationForEdits bool `json:"require_confirmation_for_edits"`
	// RequireConfirmationForNewRules applies only to proposed rules.
	RequireConfirmationForNewRules bool `json:"require_confirmation_for_new_rules"`
}

// DefaultSettings returns the conservative defaults: nothing is
// applied without confirmation.
func DefaultSettings() Settings {
	return Settings{
		RequireConfirmation:            true,
		RequireConfirmationForEdits:    true,
		RequireConfirmationForNewRules: true,
	}
}

// Store is the durable state contract. Implementations must make a
// completed save visible in its entirety to the next load in the same
// process. Concurrent writers are out of scope.
type Store interface {
	SaveTimestamp(ts TimestampState) error
	LoadTimestamp() (TimestampState, error)

	SaveRules(rules []rewrite.Rule) error
	LoadRules() ([]rewrite.Rule, error)

	SavePendingEdits(edits []PendingEdit) error
	LoadPendingEdits() ([]PendingEdit, error)

	SavePendingRules(rules []PendingRule) error
	LoadPendingRules() ([]PendingRule, error)

	SaveSettings(s Settings) error
	LoadSettings() (Settings, error)
}
