package provider

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/rewrite"
	"github.com/llehouerou/scrubber/internal/scrobble"
)

// RulesProviderName identifies suggestions from the rule-based provider.
const RulesProviderName = "rewrite-rules"

// RulesProvider evaluates the configured rewrite rules against each
// track. Rules flagged RequiresMusicBrainz only produce a suggestion
// when the lookup confirms the rewritten (artist, track, album)
// combination names a real release; this stops rules from "fixing"
// metadata into values that do not exist.
type RulesProvider struct {
	rules  []rewrite.Rule
	lookup MetadataLookup
	logger *log.Logger
}

var _ Provider = (*RulesProvider)(nil)

// NewRulesProvider creates a rule-based provider. lookup may be nil
// when no rule carries the MusicBrainz flag.
func NewRulesProvider(rules []rewrite.Rule, lookup MetadataLookup, logger *log.Logger) *RulesProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &RulesProvider{rules: rules, lookup: lookup, logger: logger}
}

func (p *RulesProvider) Name() string {
	return RulesProviderName
}

// SetRules replaces the active rule set.
func (p *RulesProvider) SetRules(rules []rewrite.Rule) {
	p.rules = rules
}

// AnalyzeTracks applies the rules sequentially to every track. Each
// rule is applied to a candidate copy of the cumulative edit; a rule
// flagged RequiresMusicBrainz is confirmed against the lookup before
// its candidate is accepted, and an unconfirmed rule is skipped on its
// own, leaving the other rules' changes intact.
func (p *RulesProvider) AnalyzeTracks(ctx context.Context, tracks []scrobble.Track, opts Options) (map[int][]Suggestion, error) {
	results := make(map[int][]Suggestion)

	for i, track := range tracks {
		edit := scrobble.NewNoOpEdit(track)

		var changed, needsConfirmation bool
		var appliedNames []string
		for r := range p.rules {
			rule := &p.rules[r]
			candidate := edit
			ruleChanged, err := rule.Apply(&candidate)
			if err != nil {
				return nil, fmt.Errorf("apply rule %q: %w", rule.Name, err)
			}
			if !ruleChanged {
				continue
			}
			if rule.RequiresMusicBrainz && !p.confirmEdit(ctx, candidate) {
				// Skip this rule only.
				p.logger.Debug("skipped unconfirmed rule",
					"rule", rule.Name, "track", track.Name, "artist", track.Artist)
				continue
			}
			edit = candidate
			changed = true
			needsConfirmation = needsConfirmation || rule.RequiresConfirmation
			appliedNames = append(appliedNames, rule.Name)
		}
		if !changed {
			continue
		}
		if pendingEditExists(opts, edit) {
			continue
		}

		suggestion := Suggestion{
			Edit:                 &edit,
			Provider:             RulesProviderName,
			Reason:               fmt.Sprintf("matched rules: %v", appliedNames),
			RequiresConfirmation: needsConfirmation,
		}
		results[i] = append(results[i], suggestion)
	}

	return results, nil
}

// confirmEdit checks the rewritten combination against the metadata
// lookup. Missing lookup, lookup error and a negative answer all fail
// closed: the flagged rule's contribution is dropped.
func (p *RulesProvider) confirmEdit(ctx context.Context, edit scrobble.Edit) bool {
	if p.lookup == nil {
		return false
	}
	confirmed, err := p.lookup.ConfirmRelease(ctx, edit.ArtistName, edit.TrackName, edit.AlbumName)
	if err != nil {
		p.logger.Warn("metadata lookup failed, skipping rule",
			"track", edit.TrackName, "artist", edit.ArtistName, "err", err)
		return false
	}
	return confirmed
}
