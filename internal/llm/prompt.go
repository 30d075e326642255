package llm

import (
	"fmt"
	"strings"
)

// systemPrompt pins the provider to the JSON document shape the
// response validator expects. The output is still treated as untrusted.
const systemPrompt = `You are a guitar music theory assistant. Respond with a single JSON object and nothing else, using exactly this shape:
{
  "progression": [
    {"chordName": "Cmaj7", "musicalFunction": "Tonic", "relationToKey": "Imaj7"}
  ],
  "scales": [
    {"name": "C Major", "rootNote": "C"}
  ],
  "detectedKey": "C",
  "detectedMode": "Major"
}
Chord names use standard notation (root, quality, optional slash bass). relationToKey uses Roman-numeral notation relative to the key. The first scale must match the key and mode of the progression.`

// GenerationPrompt builds the user prompt for the generate operation.
func GenerationPrompt(req GenerationRequest) (system, user string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a %d-chord guitar progression in %s %s.", req.ChordCount, req.Key, req.Mode)
	if req.GenerationStyle != "" {
		fmt.Fprintf(&b, " Style: %s.", req.GenerationStyle)
	}
	if req.ProgressionPattern != "" {
		fmt.Fprintf(&b, " Follow the pattern %s.", req.ProgressionPattern)
	}
	if req.TensionsEnabled {
		b.WriteString(" Include advanced tension chords: extended or altered qualities, secondary dominants, tritone substitutions or slash chords.")
	} else {
		b.WriteString(" Stick to diatonic triads and seventh chords.")
	}
	b.WriteString(" Suggest scales for improvising over it, the first being the parent scale of the key.")

	return systemPrompt, b.String()
}

// AnalysisPrompt builds the user prompt for the analyze-custom operation.
func AnalysisPrompt(chords []string) (system, user string) {
	user = fmt.Sprintf(
		"Analyze this chord progression: %s. Detect its most likely key and mode, explain each chord's function and relation to that key, and suggest scales for improvising, the first being the parent scale of the detected key.",
		strings.Join(chords, ", "),
	)
	return systemPrompt, user
}
