package music

import (
	"encoding/json"
	"testing"
)

const validPayload = `{
  "progression": [
    {"chordName": "Cmaj7", "musicalFunction": "Tonic", "relationToKey": "Imaj7"},
    {"chordName": "Am7", "musicalFunction": "Submediant", "relationToKey": "vi7"},
    {"chordName": "Dm7", "musicalFunction": "Supertonic", "relationToKey": "ii7"},
    {"chordName": "G7", "musicalFunction": "Dominant", "relationToKey": "V7"}
  ],
  "scales": [
    {"name": "C Major", "rootNote": "C"},
    {"name": "A Minor Pentatonic", "rootNote": "A"}
  ],
  "detectedKey": "C",
  "detectedMode": "Major"
}`

func TestValidateAcceptsWellFormedPayload(t *testing.T) {
	result, err := Validate([]byte(validPayload), Options{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(result.Progression) != 4 {
		t.Fatalf("expected 4 chords, got %d", len(result.Progression))
	}
	if len(result.Scales) != 2 {
		t.Fatalf("expected 2 scales, got %d", len(result.Scales))
	}
	if result.DetectedKey != "C" || result.DetectedMode != "Major" {
		t.Fatalf("detected key/mode = %q/%q", result.DetectedKey, result.DetectedMode)
	}
}

func TestValidateNormalizesScaleAndModeAliases(t *testing.T) {
	payload := `{
	  "progression": [
	    {"chordName": "C", "musicalFunction": "Tonic", "relationToKey": "I"}
	  ],
	  "scales": [{"name": "C Ionian", "rootNote": "C"}],
	  "detectedMode": "Ionian"
	}`

	result, err := Validate([]byte(payload), Options{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Scales[0].Name != "C Major" {
		t.Fatalf("expected C Ionian normalized to C Major, got %q", result.Scales[0].Name)
	}
	if result.DetectedMode != "Major" {
		t.Fatalf("expected detectedMode Ionian normalized to Major, got %q", result.DetectedMode)
	}
}

func TestValidateScaleRootAgreement(t *testing.T) {
	mismatch := `{
	  "progression": [{"chordName": "C", "musicalFunction": "Tonic", "relationToKey": "I"}],
	  "scales": [{"name": "C Major", "rootNote": "D"}]
	}`
	if _, err := Validate([]byte(mismatch), Options{}); !IsValidationError(err) {
		t.Fatalf("expected validation error for root mismatch, got %v", err)
	}

	// Enharmonic spellings of the same pitch agree.
	enharmonic := `{
	  "progression": [{"chordName": "C#", "musicalFunction": "Tonic", "relationToKey": "I"}],
	  "scales": [{"name": "C# Major", "rootNote": "Db"}]
	}`
	if _, err := Validate([]byte(enharmonic), Options{}); err != nil {
		t.Fatalf("enharmonic root spellings should validate, got %v", err)
	}
}

func TestValidateRejectsStructuralFailures(t *testing.T) {
	cases := map[string]string{
		"missing progression": `{"scales": [{"name": "C Major", "rootNote": "C"}]}`,
		"empty progression":   `{"progression": [], "scales": [{"name": "C Major", "rootNote": "C"}]}`,
		"missing scales":      `{"progression": [{"chordName": "C", "musicalFunction": "Tonic", "relationToKey": "I"}]}`,
		"empty scales":        `{"progression": [{"chordName": "C", "musicalFunction": "Tonic", "relationToKey": "I"}], "scales": []}`,
		"bad chord name":      `{"progression": [{"chordName": "Xylo7", "musicalFunction": "Tonic", "relationToKey": "I"}], "scales": [{"name": "C Major", "rootNote": "C"}]}`,
		"bad relation":        `{"progression": [{"chordName": "C", "musicalFunction": "Tonic", "relationToKey": "VIII"}], "scales": [{"name": "C Major", "rootNote": "C"}]}`,
		"missing function":    `{"progression": [{"chordName": "C", "relationToKey": "I"}], "scales": [{"name": "C Major", "rootNote": "C"}]}`,
		"bad detectedKey":     `{"progression": [{"chordName": "C", "musicalFunction": "Tonic", "relationToKey": "I"}], "scales": [{"name": "C Major", "rootNote": "C"}], "detectedKey": "H"}`,
	}

	for name, payload := range cases {
		if _, err := Validate([]byte(payload), Options{}); !IsValidationError(err) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestValidateJSONSyntaxErrorIsNotValidationError(t *testing.T) {
	_, err := Validate([]byte(`{"progression": [`), Options{})
	if err == nil {
		t.Fatalf("expected an error for truncated JSON")
	}
	if IsValidationError(err) {
		t.Fatalf("parse failures must stay retryable, got validation error: %v", err)
	}
}

func TestValidatePrimaryScaleMatchesRequest(t *testing.T) {
	opts := Options{ExpectedKey: "C", ExpectedMode: "Major"}
	if _, err := Validate([]byte(validPayload), opts); err != nil {
		t.Fatalf("primary scale matches the request, got %v", err)
	}

	opts = Options{ExpectedKey: "D", ExpectedMode: "Major"}
	if _, err := Validate([]byte(validPayload), opts); !IsValidationError(err) {
		t.Fatalf("expected key mismatch to fail, got %v", err)
	}

	opts = Options{ExpectedKey: "C", ExpectedMode: "Dorian"}
	if _, err := Validate([]byte(validPayload), opts); !IsValidationError(err) {
		t.Fatalf("expected mode mismatch to fail, got %v", err)
	}
}

func TestValidateTensionFloor(t *testing.T) {
	tense := `{
	  "progression": [
	    {"chordName": "Cmaj7", "musicalFunction": "Tonic", "relationToKey": "Imaj7"},
	    {"chordName": "D7", "musicalFunction": "Secondary Dominant of V", "relationToKey": "V7/V"},
	    {"chordName": "G13", "musicalFunction": "Dominant", "relationToKey": "V13"},
	    {"chordName": "C6/9", "musicalFunction": "Tonic", "relationToKey": "I"}
	  ],
	  "scales": [{"name": "C Major", "rootNote": "C"}]
	}`
	opts := Options{RequireTensions: true, ExpectedChordCount: 4}
	if _, err := Validate([]byte(tense), opts); err != nil {
		t.Fatalf("payload has advanced chords, floor of 1 is met: %v", err)
	}

	plain := `{
	  "progression": [
	    {"chordName": "C", "musicalFunction": "Tonic", "relationToKey": "I"},
	    {"chordName": "F", "musicalFunction": "Subdominant", "relationToKey": "IV"},
	    {"chordName": "G", "musicalFunction": "Dominant", "relationToKey": "V"}
	  ],
	  "scales": [{"name": "C Major", "rootNote": "C"}]
	}`
	opts = Options{RequireTensions: true, ExpectedChordCount: 3}
	if _, err := Validate([]byte(plain), opts); !IsValidationError(err) {
		t.Fatalf("expected tension floor failure for plain triads, got %v", err)
	}
}

func TestResultMatchesKeyMode(t *testing.T) {
	var result Result
	if err := json.Unmarshal([]byte(validPayload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !result.MatchesKeyMode("C", "Major") {
		t.Errorf("expected match for C Major")
	}
	if !result.MatchesKeyMode("B#", "Ionian") {
		t.Errorf("enharmonic key and mode alias should match")
	}
	if result.MatchesKeyMode("D", "Major") {
		t.Errorf("expected mismatch for D Major")
	}
	if (&Result{}).MatchesKeyMode("C", "Major") {
		t.Errorf("result without scales cannot match")
	}
}

func TestIsAdvancedChord(t *testing.T) {
	advanced := []ChordEntry{
		{ChordName: "G7b9", MusicalFunction: "Dominant", RelationToKey: "V7b9"},
		{ChordName: "C/E", MusicalFunction: "Tonic", RelationToKey: "I"},
		{ChordName: "D7", MusicalFunction: "Secondary Dominant of V", RelationToKey: "V7/V"},
		{ChordName: "Db7", MusicalFunction: "Tritone substitution", RelationToKey: "bII7"},
	}
	for _, entry := range advanced {
		if !IsAdvancedChord(entry) {
			t.Errorf("expected %q to count as advanced", entry.ChordName)
		}
	}

	if IsAdvancedChord(ChordEntry{ChordName: "C", MusicalFunction: "Tonic", RelationToKey: "I"}) {
		t.Errorf("plain triad must not count as advanced")
	}
}
