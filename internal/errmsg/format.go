// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Configuration and startup
	OpConfigLoad Op = "load configuration"
	OpInitialize Op = "initialize scrubber"

	// Authentication
	OpAuthStart    Op = "start authentication"
	OpAuthComplete Op = "complete authentication"
	OpSessionLoad  Op = "load stored session"
	OpSessionSave  Op = "save session"
	OpSessionClear Op = "clear stored session"

	// History and cache
	OpHistoryFetch Op = "fetch play history"
	OpArtistFetch  Op = "fetch artist tracks"
	OpCacheLoad    Op = "load track cache"
	OpCacheSave    Op = "save track cache"
	OpCacheClear   Op = "clear track cache"

	// Rules and suggestions
	OpRulesLoad   Op = "load rewrite rules"
	OpRulesSave   Op = "save rewrite rules"
	OpAnalyze     Op = "analyze tracks"
	OpEditSubmit  Op = "submit scrobble edit"
	OpPendingLoad Op = "load pending edits"
	OpPendingSave Op = "save pending edits"

	// Run loop
	OpScrubberStart Op = "start scrubber"
	OpScrubberStop  Op = "stop scrubber"
	OpCycleRun      Op = "run processing cycle"
	OpAnchorLoad    Op = "load processed-up-to marker"
	OpAnchorSave    Op = "save processed-up-to marker"

	// Audit log
	OpAuditRead Op = "read audit log"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
