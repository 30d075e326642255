package cache

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jonnydry/progger/internal/llm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Fingerprint derives the deterministic cache/coalescing key for a
// generation request. Two requests with the same musical meaning always
// produce the same fingerprint; any changed field produces a different
// one.
//
// Format: progression:<key>:<mode>:<tensions|no-tensions>:<count>:<pattern>
func Fingerprint(req llm.GenerationRequest) string {
	tensions := "no-tensions"
	if req.TensionsEnabled {
		tensions = "tensions"
	}

	parts := []string{
		"progression",
		normalize(req.Key),
		normalize(req.Mode),
		tensions,
		strconv.Itoa(req.ChordCount),
		sanitizeToken(req.GenerationStyle + "-" + req.ProgressionPattern),
	}
	return strings.Join(parts, ":")
}

// CustomFingerprint derives the key for the "analyze a given chord list"
// operation: the ordered, hyphen-joined chord list under its own
// namespace, since the request has no other parameters.
//
// Format: custom:<chord1>-<chord2>-...
func CustomFingerprint(chords []string) string {
	sanitized := make([]string, 0, len(chords))
	for _, c := range chords {
		sanitized = append(sanitized, strings.TrimSpace(c))
	}
	return "custom:" + strings.Join(sanitized, "-")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sanitizeToken lower-cases and collapses anything non-alphanumeric to a
// hyphen so free-form style/pattern text cannot break the key format.
func sanitizeToken(s string) string {
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
