package rewrite

// DefaultRules returns the stock cleanup set: remaster suffixes,
// featuring-artist normalization, whitespace trimming and explicit
// content markers. All patterns are written for whole-value
// replacement, capturing the text that survives.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "strip remaster suffix",
			TrackName: MustSdRule(
				`^(.*?)(?: - \d{4} remaster| - remaster(?: \d{4})?| \(\d{4} remaster(?:ed)?\)| \(remaster(?:ed)?(?: \d{4})?\))$`,
				"$1", "i"),
			AlbumName: MustSdRule(
				`^(.*?)(?: - \d{4} remaster| - remaster(?: \d{4})?| \(\d{4} remaster(?:ed)?\)| \(remaster(?:ed)?(?: \d{4})?\))$`,
				"$1", "i"),
		},
		{
			Name: "normalize featuring",
			TrackName: MustSdRule(
				`^(.*?) (?:ft\.|featuring) (.*)$`,
				"$1 feat. $2", "i"),
			ArtistName: MustSdRule(
				`^(.*?) (?:ft\.|featuring) (.*)$`,
				"$1 feat. $2", "i"),
		},
		{
			Name:       "trim whitespace",
			TrackName:  MustSdRule(`^\s+(.*?)\s*$|^(.*?)\s+$`, "$1$2", ""),
			ArtistName: MustSdRule(`^\s+(.*?)\s*$|^(.*?)\s+$`, "$1$2", ""),
		},
		{
			Name: "strip explicit marker",
			TrackName: MustSdRule(
				`^(.*?)(?: \(explicit\)| - explicit)$`,
				"$1", "i"),
		},
	}
}
