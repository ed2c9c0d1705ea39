// Package rewrite implements the text transformation engine used to
// clean up scrobble metadata. Rules use whole-value replacement: when a
// pattern matches anywhere in a field, the entire field is replaced by
// the rendered template, with capture groups available for keeping the
// parts that should survive.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// SdRule is a single find/replace transformation over one field value.
//
// Matching is whole-value: if Find matches anywhere in the input, the
// whole input is replaced by Replace. The template supports $1, ${name}
// and $$ the way regexp.Expand does. A rule that should only touch part
// of a value must capture the rest and echo it back through the
// template.
type SdRule struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
	Flags   string `json:"flags,omitempty"`

	re *regexp.Regexp
}

// NewSdRule compiles a rule. Supported flags: "i" (case-insensitive),
// "s" (dot matches newline), "m" (multi-line anchors). Unknown flags
// are ignored. An invalid pattern fails here, never at apply time.
func NewSdRule(find, replace, flags string) (*SdRule, error) {
	r := &SdRule{Find: find, Replace: replace, Flags: flags}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustSdRule is NewSdRule for statically known patterns.
func MustSdRule(find, replace, flags string) *SdRule {
	r, err := NewSdRule(find, replace, flags)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *SdRule) compile() error {
	var prefix strings.Builder
	for _, f := range r.Flags {
		switch f {
		case 'i', 's', 'm':
			fmt.Fprintf(&prefix, "(?%c)", f)
		}
	}
	re, err := regexp.Compile(prefix.String() + r.Find)
	if err != nil {
		return fmt.Errorf("compile rewrite pattern %q: %w", r.Find, err)
	}
	r.re = re
	return nil
}

// ensure recompiles the pattern for rules that arrived via JSON rather
// than NewSdRule.
func (r *SdRule) ensure() error {
	if r.re != nil {
		return nil
	}
	return r.compile()
}

// Matches reports whether the pattern matches anywhere in the input.
func (r *SdRule) Matches(input string) bool {
	if r.ensure() != nil {
		return false
	}
	return r.re.MatchString(input)
}

// Apply returns the transformed value, or the input unchanged when the
// pattern does not match.
func (r *SdRule) Apply(input string) (string, error) {
	if err := r.ensure(); err != nil {
		return input, err
	}
	m := r.re.FindStringSubmatchIndex(input)
	if m == nil {
		return input, nil
	}
	return string(r.re.ExpandString(nil, r.Replace, input, m)), nil
}

// Rule groups up to four per-field transformations applied as a unit.
// A nil field rule leaves that field alone.
type Rule struct {
	Name        string  `json:"name,omitempty"`
	TrackName   *SdRule `json:"track_name,omitempty"`
	ArtistName  *SdRule `json:"artist_name,omitempty"`
	AlbumName   *SdRule `json:"album_name,omitempty"`
	AlbumArtist *SdRule `json:"album_artist_name,omitempty"`

	// RequiresMusicBrainz gates the rule's suggestions on a metadata
	// lookup confirming the rewritten values name a real release.
	RequiresMusicBrainz bool `json:"requires_musicbrainz,omitempty"`
	// RequiresConfirmation forces the resulting edit into the pending
	// queue even when auto-apply is enabled.
	RequiresConfirmation bool `json:"requires_confirmation,omitempty"`
}

// Validate compiles every configured sub-rule. Rules deserialized from
// storage bypass NewSdRule; validating when they are loaded keeps one
// bad persisted pattern from failing every subsequent apply.
func (r *Rule) Validate() error {
	for _, sd := range []*SdRule{r.TrackName, r.ArtistName, r.AlbumName, r.AlbumArtist} {
		if sd == nil {
			continue
		}
		if err := sd.ensure(); err != nil {
			return err
		}
	}
	return nil
}

// AppliesTo reports whether any configured sub-rule would change the
// corresponding field of the track.
func (r *Rule) AppliesTo(t scrobble.Track) bool {
	if fieldWouldChange(r.TrackName, t.Name) {
		return true
	}
	if fieldWouldChange(r.ArtistName, t.Artist) {
		return true
	}
	if t.Album != "" && fieldWouldChange(r.AlbumName, t.Album) {
		return true
	}
	if t.AlbumArtist != "" && fieldWouldChange(r.AlbumArtist, t.AlbumArtist) {
		return true
	}
	return false
}

func fieldWouldChange(r *SdRule, value string) bool {
	if r == nil {
		return false
	}
	out, err := r.Apply(value)
	return err == nil && out != value
}

// Apply transforms the edit's new values in place and reports whether
// anything changed. Empty album / album-artist values are left alone:
// there is nothing to rewrite.
func (r *Rule) Apply(e *scrobble.Edit) (bool, error) {
	changed := false

	apply := func(sd *SdRule, value *string) error {
		if sd == nil {
			return nil
		}
		out, err := sd.Apply(*value)
		if err != nil {
			return err
		}
		if out != *value {
			*value = out
			changed = true
		}
		return nil
	}

	if err := apply(r.TrackName, &e.TrackName); err != nil {
		return changed, err
	}
	if err := apply(r.ArtistName, &e.ArtistName); err != nil {
		return changed, err
	}
	if e.AlbumName != "" {
		if err := apply(r.AlbumName, &e.AlbumName); err != nil {
			return changed, err
		}
	}
	if e.AlbumArtist != "" {
		if err := apply(r.AlbumArtist, &e.AlbumArtist); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// ApplyAll applies every rule in declared order. Each rule sees the
// cumulative edit produced by the rules before it.
func ApplyAll(rules []Rule, e *scrobble.Edit) (bool, error) {
	any := false
	for i := range rules {
		changed, err := rules[i].Apply(e)
		if err != nil {
			return any, err
		}
		if changed {
			any = true
		}
	}
	return any, nil
}

// AnyApply reports whether at least one rule applies to the track.
func AnyApply(rules []Rule, t scrobble.Track) bool {
	for i := range rules {
		if rules[i].AppliesTo(t) {
			return true
		}
	}
	return false
}
