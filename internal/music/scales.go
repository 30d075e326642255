package music

import "strings"

// scaleDescriptors maps lower-cased scale descriptors (including
// mode-family aliases) to their canonical form. Ionian and Aeolian are
// normalized to Major and Minor on output.
var scaleDescriptors = map[string]string{
	"major":         "Major",
	"ionian":        "Major",
	"minor":         "Minor",
	"aeolian":       "Minor",
	"natural minor": "Minor",

	"dorian":     "Dorian",
	"phrygian":   "Phrygian",
	"lydian":     "Lydian",
	"mixolydian": "Mixolydian",
	"locrian":    "Locrian",

	"harmonic minor":   "Harmonic Minor",
	"melodic minor":    "Melodic Minor",
	"harmonic major":   "Harmonic Major",
	"major pentatonic": "Major Pentatonic",
	"minor pentatonic": "Minor Pentatonic",
	"blues":            "Blues",
	"whole tone":       "Whole Tone",
	"chromatic":        "Chromatic",

	"diminished":            "Diminished",
	"half-whole diminished": "Half-Whole Diminished",
	"whole-half diminished": "Whole-Half Diminished",
	"altered":               "Altered",
	"lydian dominant":       "Lydian Dominant",
	"phrygian dominant":     "Phrygian Dominant",
	"bebop dominant":        "Bebop Dominant",
	"bebop major":           "Bebop Major",
	"dorian b2":             "Dorian b2",
	"mixolydian b6":         "Mixolydian b6",
}

// Scale is a parsed scale name.
type Scale struct {
	Root       string
	Descriptor string // canonical form
}

// Canonical returns the normalized scale name ("C Ionian" -> "C Major").
func (s Scale) Canonical() string {
	return s.Root + " " + s.Descriptor
}

// ParseScale validates a scale name as root + descriptor against the
// closed descriptor set, normalizing alias descriptors to canonical
// form.
func ParseScale(name string) (Scale, bool) {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) < 2 {
		return Scale{}, false
	}

	root := fields[0]
	if !IsNote(root) {
		return Scale{}, false
	}

	descriptor := strings.ToLower(strings.Join(fields[1:], " "))
	canonical, ok := scaleDescriptors[descriptor]
	if !ok {
		return Scale{}, false
	}

	return Scale{Root: root, Descriptor: canonical}, true
}

// CanonicalMode normalizes a mode name to its canonical family form
// ("Ionian" -> "Major", "Aeolian" -> "Minor", "Dorian" -> "Dorian").
func CanonicalMode(mode string) (string, bool) {
	canonical, ok := scaleDescriptors[strings.ToLower(strings.TrimSpace(mode))]
	return canonical, ok
}

// IsMode reports whether the string is a recognized mode/scale
// descriptor.
func IsMode(mode string) bool {
	_, ok := CanonicalMode(mode)
	return ok
}
