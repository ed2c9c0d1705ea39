package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/rewrite"
)

// documentVersion tags every persisted document. A file with a
// different version loads as an empty default rather than failing.
const documentVersion = 1

const (
	timestampFile    = "timestamp.json"
	rulesFile        = "rewrite_rules.json"
	pendingEditsFile = "pending_edits.json"
	pendingRulesFile = "pending_rules.json"
	settingsFile     = "settings.json"
)

// document is the version-tagged envelope wrapping every file.
type document[T any] struct {
	Version int `json:"version"`
	Data    T   `json:"data"`
}

// FileStore persists each state document as one JSON file under a
// directory, created on first use.
type FileStore struct {
	dir    string
	logger *log.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory holding the state documents.
func (s *FileStore) Dir() string {
	return s.dir
}

func saveDocument[T any](s *FileStore, name string, data T) error {
	doc := document[T]{Version: documentVersion, Data: data}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// loadDocument reads a document, substituting the zero default when
// the file is missing, unreadable or carries an unknown version.
func loadDocument[T any](s *FileStore, name string) (T, error) {
	var zero T

	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", name, err)
	}

	var doc document[T]
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("unreadable state document, using defaults", "file", name, "err", err)
		return zero, nil
	}
	if doc.Version != documentVersion {
		s.logger.Warn("state document version mismatch, using defaults",
			"file", name, "version", doc.Version, "expected", documentVersion)
		return zero, nil
	}
	return doc.Data, nil
}

// SaveTimestamp persists the processing anchor.
func (s *FileStore) SaveTimestamp(ts TimestampState) error {
	return saveDocument(s, timestampFile, ts)
}

// LoadTimestamp loads the processing anchor.
func (s *FileStore) LoadTimestamp() (TimestampState, error) {
	return loadDocument[TimestampState](s, timestampFile)
}

// SaveRules persists the active rewrite rules.
func (s *FileStore) SaveRules(rules []rewrite.Rule) error {
	return saveDocument(s, rulesFile, rules)
}

// LoadRules loads the active rewrite rules. Rules whose pattern no
// longer compiles are dropped with a warning instead of poisoning
// every analysis pass.
func (s *FileStore) LoadRules() ([]rewrite.Rule, error) {
	rules, err := loadDocument[[]rewrite.Rule](s, rulesFile)
	if err != nil {
		return nil, err
	}
	valid := rules[:0]
	for i := range rules {
		if verr := rules[i].Validate(); verr != nil {
			s.logger.Warn("dropping invalid rewrite rule", "rule", rules[i].Name, "err", verr)
			continue
		}
		valid = append(valid, rules[i])
	}
	return valid, nil
}

// SavePendingEdits persists the pending edit queue.
func (s *FileStore) SavePendingEdits(edits []PendingEdit) error {
	return saveDocument(s, pendingEditsFile, edits)
}

// LoadPendingEdits loads the pending edit queue.
func (s *FileStore) LoadPendingEdits() ([]PendingEdit, error) {
	return loadDocument[[]PendingEdit](s, pendingEditsFile)
}

// SavePendingRules persists the proposed-rule queue.
func (s *FileStore) SavePendingRules(rules []PendingRule) error {
	return saveDocument(s, pendingRulesFile, rules)
}

// LoadPendingRules loads the proposed-rule queue.
func (s *FileStore) LoadPendingRules() ([]PendingRule, error) {
	return loadDocument[[]PendingRule](s, pendingRulesFile)
}

// SaveSettings persists the settings document.
func (s *FileStore) SaveSettings(settings Settings) error {
	return saveDocument(s, settingsFile, settings)
}

// LoadSettings loads the settings document. A missing file yields
// DefaultSettings, not the zero value.
func (s *FileStore) LoadSettings() (Settings, error) {
	path := filepath.Join(s.dir, settingsFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	return loadDocument[Settings](s, settingsFile)
}
