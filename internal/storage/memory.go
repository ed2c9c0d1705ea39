package storage

import (
	"slices"
	"sync"

	"github.com/llehouerou/scrubber/internal/rewrite"
)

// MemoryStore keeps all state documents in memory. Used by tests and
// by front-end variants that opt out of persistence.
type MemoryStore struct {
	mu           sync.Mutex
	timestamp    TimestampState
	rules        []rewrite.Rule
	pendingEdits []PendingEdit
	pendingRules []PendingRule
	settings     Settings
	hasSettings  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveTimestamp(ts TimestampState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timestamp = ts
	return nil
}

func (s *MemoryStore) LoadTimestamp() (TimestampState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestamp, nil
}

func (s *MemoryStore) SaveRules(rules []rewrite.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = slices.Clone(rules)
	return nil
}

func (s *MemoryStore) LoadRules() ([]rewrite.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rules), nil
}

func (s *MemoryStore) SavePendingEdits(edits []PendingEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingEdits = slices.Clone(edits)
	return nil
}

func (s *MemoryStore) LoadPendingEdits() ([]PendingEdit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pendingEdits), nil
}

func (s *MemoryStore) SavePendingRules(rules []PendingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRules = slices.Clone(rules)
	return nil
}

func (s *MemoryStore) LoadPendingRules() ([]PendingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pendingRules), nil
}

func (s *MemoryStore) SaveSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.hasSettings = true
	return nil
}

func (s *MemoryStore) LoadSettings() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSettings {
		return DefaultSettings(), nil
	}
	return s.settings, nil
}
