package music

import (
	"regexp"
	"strings"
)

// chordQualities is the closed set of recognized chord qualities. A
// chord name is root[accidental] + quality [/ bass]; the empty quality
// is a plain major triad.
var chordQualities = map[string]struct{}{}

func init() {
	for _, q := range []string{
		// triads and power chords
		"", "m", "min", "-", "maj", "M", "dim", "aug", "+", "5",
		"sus2", "sus4",
		// sixths
		"6", "m6", "min6", "6/9", "m6/9", "6add9",
		// sevenths
		"7", "maj7", "M7", "Maj7", "m7", "min7", "-7",
		"dim7", "m7b5", "ø", "ø7", "aug7", "7sus4", "7sus2",
		"mMaj7", "m(maj7)", "min/maj7", "minMaj7", "maj7b5", "maj7#5",
		// extensions
		"9", "maj9", "M9", "Maj9", "m9", "min9",
		"11", "maj11", "m11", "min11",
		"13", "maj13", "m13", "min13",
		"add9", "madd9", "add11", "add13",
		// altered dominants
		"7b5", "7#5", "7b9", "7#9", "7b13", "7#11",
		"9b5", "9#5", "9#11", "m9b5",
		"13b9", "13#11", "13sus4",
		"alt", "7alt",
	} {
		chordQualities[q] = struct{}{}
	}
}

// Chord is a parsed chord name.
type Chord struct {
	Root    string
	Quality string
	Bass    string // slash-chord bass note, empty if none
}

// ParseChord validates a chord name against the grammar
// root[accidental] + quality [/ bass] with a closed quality set.
//
// A leading 'b' after the root letter is ambiguous ("Bb5" is a B-flat
// power chord, "B7b5" an altered dominant), so root candidates are
// tried longest-accidental-run first. Qualities containing a slash
// ("6/9", "min/maj7") are matched before the remainder is treated as a
// slash-chord bass.
func ParseChord(name string) (Chord, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Chord{}, false
	}

	// Root candidates: letter plus 0..2 accidental characters, longest
	// first.
	end := 1
	for end < len(name) && end <= 2 && (name[end] == '#' || name[end] == 'b') {
		end++
	}

	for ; end >= 1; end-- {
		root := name[:end]
		if !IsNote(root) {
			continue
		}
		rest := name[end:]

		if _, ok := chordQualities[rest]; ok {
			return Chord{Root: root, Quality: rest}, true
		}

		if idx := strings.LastIndex(rest, "/"); idx >= 0 {
			quality, bass := rest[:idx], rest[idx+1:]
			_, qualityOK := chordQualities[quality]
			if qualityOK && IsNote(bass) {
				return Chord{Root: root, Quality: quality, Bass: bass}, true
			}
		}
	}

	return Chord{}, false
}

// advancedMarkers flag the altered/extended symbols that make a chord
// count as an advanced (tension) chord.
var advancedMarkers = []string{
	"9", "11", "13", "alt", "dim", "aug", "+", "ø",
	"b5", "#5", "b9", "#9", "#11", "b13",
}

// IsAdvancedQuality reports whether a chord quality carries an altered
// or extended symbol.
func IsAdvancedQuality(quality string) bool {
	for _, marker := range advancedMarkers {
		if strings.Contains(quality, marker) {
			return true
		}
	}
	return false
}

// romanComponent matches one Roman-numeral relation component:
// [accidental]? roman-numeral quality-suffix*.
var romanComponent = regexp.MustCompile(
	`^[b#♭♯]?` +
		`(?:VII|VI|IV|III|II|I|V|vii|vi|iv|iii|ii|i|v)` +
		`(?:°|ø|º|o7|o|\+|maj7|mM7|m7b5|dim7|dim|aug|alt|sus2|sus4|add9|[b#]?(?:5|6|7|9|11|13))*$`,
)

// ValidRelation validates a relation-to-key string: one Roman-numeral
// component, or several separated by slashes for secondary-function
// notation ("V7/V").
func ValidRelation(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, "/") {
		if !romanComponent.MatchString(part) {
			return false
		}
	}
	return true
}
