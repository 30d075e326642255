package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseSize = 1 * 1024 * 1024 // 1MB upstream payload cap

// Client performs one provider call per invocation. It does no retrying
// of its own: the orchestrator wraps calls in the retry executor and
// circuit breaker, so each Complete is exactly one upstream attempt.
type Client interface {
	// Complete sends the system+user prompt pair and returns the raw
	// JSON document extracted from the completion text. The bytes are
	// untrusted until they pass the response validator.
	Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error)
}

func (c *client) Complete(parentCtx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.RequestTimeout)
	defer cancel()

	pReq := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.7,
	}

	bodyBytes, err := json.Marshal(pReq)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("llm: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && parentCtx.Err() == nil {
			// The per-call budget expired, not the caller's context.
			c.logger.Warn("provider request timed out",
				zap.Duration("timeout", c.cfg.RequestTimeout),
			)
			return nil, fmt.Errorf("llm: provider request timed out after %s: %w", c.cfg.RequestTimeout, err)
		}
		c.logger.Error("provider request failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("llm: provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

		// Try to parse a structured provider error first.
		var perr providerErrorResponse
		if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
			c.logger.Error("provider error",
				zap.Int("status", resp.StatusCode),
				zap.String("error_type", perr.Error.Type),
				zap.String("error_message", perr.Error.Message),
			)
			return nil, &StatusError{Code: resp.StatusCode, Message: perr.Error.Message}
		}

		c.logger.Error("provider upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return nil, &StatusError{Code: resp.StatusCode, Message: truncate(string(body), 200)}
	}

	var pResp chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&pResp); err != nil {
		return nil, fmt.Errorf("llm: decode upstream response: %w", err)
	}
	if len(pResp.Choices) == 0 {
		return nil, fmt.Errorf("llm: provider returned no choices")
	}

	content := pResp.Choices[0].Message.Content
	doc, ok := extractJSON(content)
	if !ok {
		// No JSON document in the completion text at all; let json
		// decoding of the raw content produce the classifiable error.
		doc = content
	}

	c.logger.Info("provider request completed",
		zap.String("model", pResp.Model),
		zap.Int("content_bytes", len(content)),
		zap.Duration("duration", duration),
	)

	return []byte(doc), nil
}

// extractJSON pulls the first JSON object out of completion text,
// tolerating markdown code fences and prose around it.
func extractJSON(content string) (string, bool) {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			content = rest[:end]
		} else {
			content = rest
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
