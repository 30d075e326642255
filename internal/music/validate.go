package music

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ChordEntry is one validated chord of a progression.
type ChordEntry struct {
	ChordName       string `json:"chordName"`
	MusicalFunction string `json:"musicalFunction"`
	RelationToKey   string `json:"relationToKey"`
}

// ScaleEntry is one validated scale suggestion.
type ScaleEntry struct {
	Name     string `json:"name"`
	RootNote string `json:"rootNote"`
}

// Result is the only shape allowed to leave the validation layer. It is
// produced exclusively by Validate and is trusted thereafter.
type Result struct {
	Progression  []ChordEntry `json:"progression"`
	Scales       []ScaleEntry `json:"scales"`
	DetectedKey  string       `json:"detectedKey,omitempty"`
	DetectedMode string       `json:"detectedMode,omitempty"`
}

// ValidationError marks provider output that failed a data-quality
// gate. It is never retried: the retryable call already completed, and
// retrying cannot fix malformed data.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid provider response: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Options control the generation-path checks. The zero value validates
// structure and grammar only (the analyze path).
type Options struct {
	// ExpectedKey/ExpectedMode, when set, require the primary scale to
	// match the originally requested key and mode.
	ExpectedKey  string
	ExpectedMode string

	// RequireTensions demands at least
	// max(1, floor(ExpectedChordCount*AdvancedRatio)) advanced chords.
	RequireTensions    bool
	ExpectedChordCount int
	AdvancedRatio      float64 // default 0.2
}

// Validate runs the untrusted provider payload through the structural
// and domain-grammar gates and produces the trusted Result.
//
// A JSON syntax failure is returned as the wrapped json error so callers
// can classify it as possibly-transient provider instability; every
// other failure is a *ValidationError.
func Validate(raw []byte, opts Options) (*Result, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("music: parse provider payload: %w", err)
	}

	progression, err := validateProgression(doc["progression"])
	if err != nil {
		return nil, err
	}

	scales, err := validateScales(doc["scales"])
	if err != nil {
		return nil, err
	}

	result := &Result{
		Progression: progression,
		Scales:      scales,
	}

	if key, ok := doc["detectedKey"].(string); ok && key != "" {
		if !IsNote(key) {
			return nil, invalid("detectedKey %q is not a note", key)
		}
		result.DetectedKey = key
	}
	if mode, ok := doc["detectedMode"].(string); ok && mode != "" {
		canonical, known := CanonicalMode(mode)
		if !known {
			return nil, invalid("detectedMode %q is not a recognized mode", mode)
		}
		result.DetectedMode = canonical
	}

	if opts.ExpectedKey != "" {
		if err := checkPrimaryScale(result, opts.ExpectedKey, opts.ExpectedMode); err != nil {
			return nil, err
		}
	}
	if opts.RequireTensions {
		if err := checkAdvancedChords(result.Progression, opts); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func validateProgression(v any) ([]ChordEntry, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, invalid("progression is missing or not an array")
	}
	if len(items) == 0 {
		return nil, invalid("progression is empty")
	}

	entries := make([]ChordEntry, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("progression[%d] is not an object", i)
		}

		name := stringField(obj, "chordName")
		function := stringField(obj, "musicalFunction")
		relation := stringField(obj, "relationToKey")

		if name == "" || function == "" || relation == "" {
			return nil, invalid("progression[%d] is missing chordName, musicalFunction or relationToKey", i)
		}
		if _, ok := ParseChord(name); !ok {
			return nil, invalid("progression[%d] chordName %q does not match the chord grammar", i, name)
		}
		if !ValidRelation(relation) {
			return nil, invalid("progression[%d] relationToKey %q does not match the Roman-numeral grammar", i, relation)
		}

		entries = append(entries, ChordEntry{
			ChordName:       name,
			MusicalFunction: function,
			RelationToKey:   relation,
		})
	}
	return entries, nil
}

func validateScales(v any) ([]ScaleEntry, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, invalid("scales is missing or not an array")
	}
	if len(items) == 0 {
		return nil, invalid("scales is empty")
	}

	entries := make([]ScaleEntry, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("scales[%d] is not an object", i)
		}

		name := stringField(obj, "name")
		rootNote := stringField(obj, "rootNote")
		if name == "" || rootNote == "" {
			return nil, invalid("scales[%d] is missing name or rootNote", i)
		}

		scale, ok := ParseScale(name)
		if !ok {
			return nil, invalid("scales[%d] name %q does not parse as root + descriptor", i, name)
		}
		if !IsNote(rootNote) {
			return nil, invalid("scales[%d] rootNote %q is not a note", i, rootNote)
		}
		if !EnharmonicEqual(scale.Root, rootNote) {
			return nil, invalid("scales[%d] root %q conflicts with rootNote %q", i, scale.Root, rootNote)
		}

		entries = append(entries, ScaleEntry{
			Name:     scale.Canonical(),
			RootNote: rootNote,
		})
	}
	return entries, nil
}

// checkPrimaryScale requires the first scale to match the requested
// key and mode. Enharmonic roots are accepted; the descriptor must
// match the canonical form of the requested mode.
func checkPrimaryScale(result *Result, key, mode string) error {
	primary, ok := ParseScale(result.Scales[0].Name)
	if !ok {
		return invalid("primary scale %q is not parseable", result.Scales[0].Name)
	}

	if !EnharmonicEqual(primary.Root, key) {
		return invalid("primary scale root %q does not match requested key %q", primary.Root, key)
	}

	expectedMode, known := CanonicalMode(mode)
	if known && primary.Descriptor != expectedMode {
		return invalid("primary scale %q does not match requested mode %q", primary.Descriptor, mode)
	}
	return nil
}

// MatchesKeyMode reports whether the primary scale of a result matches
// the given key and mode. The orchestrator uses this as the semantic
// staleness check on cache hits: a previously-cached result that fails
// it is invalidated and regenerated.
func (r *Result) MatchesKeyMode(key, mode string) bool {
	if len(r.Scales) == 0 {
		return false
	}
	return checkPrimaryScale(r, key, mode) == nil
}

// checkAdvancedChords enforces the tension floor: when the caller asked
// for advanced/tension chords, at least max(1, floor(count*ratio))
// chords must exhibit an advanced marker.
func checkAdvancedChords(progression []ChordEntry, opts Options) error {
	ratio := opts.AdvancedRatio
	if ratio <= 0 {
		ratio = 0.2
	}

	required := int(float64(opts.ExpectedChordCount) * ratio)
	if required < 1 {
		required = 1
	}

	advanced := 0
	for _, entry := range progression {
		if IsAdvancedChord(entry) {
			advanced++
		}
	}
	if advanced < required {
		return invalid("expected at least %d advanced chords, found %d", required, advanced)
	}
	return nil
}

// IsAdvancedChord reports whether a chord entry exhibits an advanced
// marker: an altered/extended quality symbol, secondary-dominant or
// tritone-substitution function text, or a slash-chord relation.
func IsAdvancedChord(entry ChordEntry) bool {
	if chord, ok := ParseChord(entry.ChordName); ok {
		if chord.Bass != "" || IsAdvancedQuality(chord.Quality) {
			return true
		}
	}

	function := strings.ToLower(entry.MusicalFunction)
	if strings.Contains(function, "secondary dominant") || strings.Contains(function, "tritone") {
		return true
	}

	return strings.Contains(entry.RelationToKey, "/")
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}
