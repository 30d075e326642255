package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonnydry/progger/internal/music"
)

// GenerationRequest carries the caller's parameters for one progression
// generation. It is created per HTTP call and fully determines the
// cache fingerprint.
type GenerationRequest struct {
	Key                string `json:"key"`
	Mode               string `json:"mode"`
	TensionsEnabled    bool   `json:"tensionsEnabled"`
	GenerationStyle    string `json:"generationStyle"`
	ChordCount         int    `json:"chordCount"`
	ProgressionPattern string `json:"progressionPattern"`
}

// Validate checks the caller-provided fields. Failures here are request
// validation errors, surfaced as 400 and never retried.
func (r *GenerationRequest) Validate() error {
	if !music.IsNote(r.Key) {
		return fmt.Errorf("key %q is not a recognized note", r.Key)
	}
	if !music.IsMode(r.Mode) {
		return fmt.Errorf("mode %q is not a recognized mode", r.Mode)
	}
	if r.ChordCount < 2 || r.ChordCount > 16 {
		return errors.New("chordCount must be between 2 and 16")
	}
	if len(r.GenerationStyle) > 50 {
		return errors.New("generationStyle is too long (max 50 characters)")
	}
	if len(r.ProgressionPattern) > 64 {
		return errors.New("progressionPattern is too long (max 64 characters)")
	}
	return nil
}

// ValidateChordList checks the body of the analyze-custom-progression
// operation: 1-12 chords, each non-empty and at most 50 characters.
func ValidateChordList(chords []string) error {
	if len(chords) < 1 || len(chords) > 12 {
		return errors.New("chords must contain between 1 and 12 entries")
	}
	for i, c := range chords {
		c = strings.TrimSpace(c)
		if c == "" {
			return fmt.Errorf("chords[%d] is empty", i)
		}
		if len(c) > 50 {
			return fmt.Errorf("chords[%d] is too long (max 50 characters)", i)
		}
	}
	return nil
}

// Provider wire types (OpenAI-compatible chat completions).

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Index   int         `json:"index"`
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	ID      string       `json:"id,omitempty"`
	Model   string       `json:"model,omitempty"`
	Choices []chatChoice `json:"choices"`
}

type providerErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
