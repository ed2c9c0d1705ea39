package musicbrainz

import (
	"sort"
	"strings"
)

// variousArtists is the MusicBrainz special-purpose artist credited on
// most various-artist compilations.
const variousArtists = "Various Artists"

// excludedTitleMarkers disqualify a release from canonical candidacy
// regardless of its reported status. Titles like "Abbey Road Working
// Version" are bootlegs even when the status field says otherwise.
var excludedTitleMarkers = []string{
	"bootleg",
	"demo",
	"outtake",
	"working version",
}

// compilationSecondaryTypes are release-group secondary types that mark
// a release as something other than a canonical studio album.
var compilationSecondaryTypes = map[string]bool{
	"Compilation":    true,
	"Soundtrack":     true,
	"Live":           true,
	"Remix":          true,
	"DJ-mix":         true,
	"Mixtape/Street": true,
	"Interview":      true,
}

// statusPriority orders release statuses, lower is better.
func statusPriority(status string) int {
	switch status {
	case "Official":
		return 0
	case "":
		return 1
	case "Promotion":
		return 2
	case "Bootleg":
		return 3
	case "Pseudo-Release":
		return 4
	default:
		return 5
	}
}

// primaryTypePriority orders release-group primary types, lower is better.
func primaryTypePriority(primaryType string) int {
	switch primaryType {
	case "Album":
		return 0
	case "EP":
		return 1
	case "Single":
		return 2
	case "Broadcast":
		return 3
	default:
		return 4
	}
}

// HasExcludedTitleMarker reports whether the release title carries a
// bootleg, demo, outtake or working-version marker.
func HasExcludedTitleMarker(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range excludedTitleMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsCompilation reports whether the release is a various-artists
// release or carries a compilation-like secondary type.
func IsCompilation(r Release) bool {
	if strings.EqualFold(r.Artist, variousArtists) {
		return true
	}
	for _, st := range r.SecondaryTypes {
		if compilationSecondaryTypes[st] {
			return true
		}
	}
	return false
}

// isSpecialEdition reports whether the title indicates a deluxe,
// remaster or similar reissue edition.
func isSpecialEdition(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range []string{
		"deluxe", "remaster", "special", "anniversary",
		"expanded", "collector", "limited", "super", "bonus",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// EligibleCanonical reports whether the release may be proposed as a
// canonical home for a recording: official (or unspecified) status, no
// disqualifying title marker, not a compilation.
func EligibleCanonical(r Release) bool {
	if statusPriority(r.Status) > 1 {
		return false
	}
	if HasExcludedTitleMarker(r.Title) {
		return false
	}
	if IsCompilation(r) {
		return false
	}
	return true
}

// compareReleases orders releases best-first: official status, then
// non-compilations, then regular editions over reissues, then studio
// albums over EPs and singles, then earliest release date.
func compareReleases(a, b Release) int {
	if d := statusPriority(a.Status) - statusPriority(b.Status); d != 0 {
		return d
	}

	aComp, bComp := IsCompilation(a), IsCompilation(b)
	if aComp != bComp {
		if aComp {
			return 1
		}
		return -1
	}

	aSpecial, bSpecial := isSpecialEdition(a.Title), isSpecialEdition(b.Title)
	if aSpecial != bSpecial {
		if aSpecial {
			return 1
		}
		return -1
	}

	if d := primaryTypePriority(a.PrimaryType) - primaryTypePriority(b.PrimaryType); d != 0 {
		return d
	}

	return compareDates(a.Date, b.Date)
}

// compareDates orders partial dates ascending; an unknown date sorts last.
func compareDates(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}

// RankCanonical filters the releases down to eligible canonical
// candidates and orders them best-first. The stable sort keeps the
// incoming order for releases the comparer cannot distinguish.
func RankCanonical(releases []Release) []Release {
	candidates := make([]Release, 0, len(releases))
	for _, r := range releases {
		if EligibleCanonical(r) {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return compareReleases(candidates[i], candidates[j]) < 0
	})
	return candidates
}
