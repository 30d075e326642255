package music

import "testing"

func TestParseChordAccepts(t *testing.T) {
	cases := []struct {
		name string
		want Chord
	}{
		{"C", Chord{Root: "C"}},
		{"Cmaj7", Chord{Root: "C", Quality: "maj7"}},
		{"Am7", Chord{Root: "A", Quality: "m7"}},
		{"Bb7", Chord{Root: "Bb", Quality: "7"}},
		{"B7b5", Chord{Root: "B", Quality: "7b5"}},
		{"Bb5", Chord{Root: "Bb", Quality: "5"}},
		{"F#m7b5", Chord{Root: "F#", Quality: "m7b5"}},
		{"F#m7b5/A", Chord{Root: "F#", Quality: "m7b5", Bass: "A"}},
		{"Cmin/maj7", Chord{Root: "C", Quality: "min/maj7"}},
		{"C6/9", Chord{Root: "C", Quality: "6/9"}},
		{"G7/B", Chord{Root: "G", Quality: "7", Bass: "B"}},
		{"Ebdim7", Chord{Root: "Eb", Quality: "dim7"}},
		{"A7#9", Chord{Root: "A", Quality: "7#9"}},
		{"Dsus4", Chord{Root: "D", Quality: "sus4"}},
	}

	for _, tc := range cases {
		got, ok := ParseChord(tc.name)
		if !ok {
			t.Errorf("ParseChord(%q): expected valid", tc.name)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseChord(%q) = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestParseChordRejects(t *testing.T) {
	for _, name := range []string{
		"", "   ", "H7", "Cunknown", "Cmaj7extra", "C/", "/G",
		"Cmaj7/H", "X", "c maj7", "C##b",
	} {
		if _, ok := ParseChord(name); ok {
			t.Errorf("ParseChord(%q): expected invalid", name)
		}
	}
}

func TestIsAdvancedQuality(t *testing.T) {
	advanced := []string{"maj9", "7b5", "7#9", "13", "dim7", "aug", "alt", "m11", "ø7"}
	for _, q := range advanced {
		if !IsAdvancedQuality(q) {
			t.Errorf("IsAdvancedQuality(%q): expected true", q)
		}
	}

	plain := []string{"", "m", "maj7", "7", "sus4", "6", "m7"}
	for _, q := range plain {
		if IsAdvancedQuality(q) {
			t.Errorf("IsAdvancedQuality(%q): expected false", q)
		}
	}
}

func TestValidRelation(t *testing.T) {
	valid := []string{
		"I", "ii", "V7", "Imaj7", "vi7", "bVII", "#ivø", "viiø7",
		"V7/V", "V/ii", "bII7", "iv", "Valt", "ii7b5", "Isus4",
	}
	for _, s := range valid {
		if !ValidRelation(s) {
			t.Errorf("ValidRelation(%q): expected true", s)
		}
	}

	invalid := []string{"", "VIII", "W7", "V7/", "/V", "1", "i-v", "V7 / V"}
	for _, s := range invalid {
		if ValidRelation(s) {
			t.Errorf("ValidRelation(%q): expected false", s)
		}
	}
}
