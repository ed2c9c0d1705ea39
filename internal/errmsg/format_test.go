//nolint:goconst // test cases intentionally repeat strings for readability
package errmsg

import (
	"errors"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpHistoryFetch,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpHistoryFetch,
			err:      errors.New("rate limited"),
			expected: "Failed to fetch play history: rate limited",
		},
		{
			name:     "edit submission",
			op:       OpEditSubmit,
			err:      errors.New("not authenticated"),
			expected: "Failed to submit scrobble edit: not authenticated",
		},
		{
			name:     "cache operation",
			op:       OpCacheSave,
			err:      errors.New("disk full"),
			expected: "Failed to save track cache: disk full",
		},
		{
			name:     "anchor persistence",
			op:       OpAnchorSave,
			err:      errors.New("permission denied"),
			expected: "Failed to save processed-up-to marker: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpArtistFetch,
			context:  "Radiohead",
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with context",
			op:       OpArtistFetch,
			context:  "Radiohead",
			err:      errors.New("timeout"),
			expected: "Failed to fetch artist tracks 'Radiohead': timeout",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpArtistFetch,
			context:  "",
			err:      errors.New("timeout"),
			expected: "Failed to fetch artist tracks: timeout",
		},
		{
			name:     "config path context",
			op:       OpConfigLoad,
			context:  "/etc/scrubber/config.toml",
			err:      errors.New("parse error"),
			expected: "Failed to load configuration '/etc/scrubber/config.toml': parse error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}

func TestOpConstants(t *testing.T) {
	// Verify that Op constants are non-empty and produce valid messages
	ops := []Op{
		OpConfigLoad, OpInitialize,
		OpAuthStart, OpAuthComplete, OpSessionLoad, OpSessionSave, OpSessionClear,
		OpHistoryFetch, OpArtistFetch, OpCacheLoad, OpCacheSave, OpCacheClear,
		OpRulesLoad, OpRulesSave, OpAnalyze, OpEditSubmit, OpPendingLoad, OpPendingSave,
		OpScrubberStart, OpScrubberStop, OpCycleRun, OpAnchorLoad, OpAnchorSave,
		OpAuditRead,
	}

	err := errors.New("boom")
	for _, op := range ops {
		if op == "" {
			t.Error("empty Op constant")
		}
		msg := Format(op, err)
		if !strings.HasPrefix(msg, "Failed to ") || !strings.HasSuffix(msg, ": boom") {
			t.Errorf("Format(%q) = %q, malformed", op, msg)
		}
	}
}
