// Package music validates untrusted provider output against the chord
// and scale grammars. It produces the only trusted result shape that
// exists downstream of the provider call.
package music

import "strings"

// Semitone offsets of the natural notes.
var noteSemitones = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// splitNote separates a note token into its natural letter and
// accidental run. Accepts ASCII and unicode accidentals, at most two.
func splitNote(s string) (letter byte, accidentals string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", false
	}

	letter = strings.ToUpper(s[:1])[0]
	if _, known := noteSemitones[letter]; !known {
		return 0, "", false
	}

	rest := s[1:]
	count := 0
	for _, r := range rest {
		switch r {
		case '#', '♯':
			accidentals += "#"
		case 'b', '♭':
			accidentals += "b"
		default:
			return 0, "", false
		}
		count++
		if count > 2 {
			return 0, "", false
		}
	}
	return letter, accidentals, true
}

// PitchClass maps a note name to its pitch class 0..11.
func PitchClass(note string) (int, bool) {
	letter, accidentals, ok := splitNote(note)
	if !ok {
		return 0, false
	}
	pc := noteSemitones[letter]
	for i := 0; i < len(accidentals); i++ {
		if accidentals[i] == '#' {
			pc++
		} else {
			pc--
		}
	}
	return ((pc % 12) + 12) % 12, true
}

// IsNote reports whether s is a recognizable note name.
func IsNote(s string) bool {
	_, ok := PitchClass(s)
	return ok
}

// EnharmonicEqual reports whether two note names denote the same pitch
// class (C# and Db are equal; C and D are not).
func EnharmonicEqual(a, b string) bool {
	pa, oka := PitchClass(a)
	pb, okb := PitchClass(b)
	return oka && okb && pa == pb
}
