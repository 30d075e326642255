package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonnydry/progger/internal/llm"
	"github.com/jonnydry/progger/internal/music"
	"github.com/jonnydry/progger/internal/progression"
	"github.com/jonnydry/progger/internal/resilience"
	"github.com/jonnydry/progger/pkg/logging"
)

// Error codes returned in the JSON error envelope.
const (
	codeValidation    = "VALIDATION_ERROR"
	codeAPIValidation = "API_VALIDATION_ERROR"
	codeUnavailable   = "SERVICE_UNAVAILABLE"
	codeTimeout       = "TIMEOUT"
	codeInternal      = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ProgressionHandler holds dependencies for the progression endpoints.
type ProgressionHandler struct {
	Service *progression.Service
}

func NewProgressionHandler(service *progression.Service) *ProgressionHandler {
	return &ProgressionHandler{Service: service}
}

// Generate handles POST /generate-progression.
func (h *ProgressionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req llm.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON body", codeValidation)
		return
	}
	if err := req.Validate(); err != nil {
		logger.Warn("request validation failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error(), codeValidation)
		return
	}

	result, err := h.Service.Generate(ctx, req)
	if err != nil {
		h.writeServiceError(w, logger, err)
		return
	}

	logger.Info("progression generated",
		zap.String("key", req.Key),
		zap.String("mode", req.Mode),
		zap.Int("chord_count", req.ChordCount),
		zap.Bool("tensions", req.TensionsEnabled),
		zap.Duration("total_latency", time.Since(start)),
	)

	writeResult(w, result)
}

type analyzeRequest struct {
	Chords []string `json:"chords"`
}

// AnalyzeCustom handles POST /analyze-custom-progression.
func (h *ProgressionHandler) AnalyzeCustom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON body", codeValidation)
		return
	}
	if err := llm.ValidateChordList(req.Chords); err != nil {
		logger.Warn("request validation failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error(), codeValidation)
		return
	}

	result, err := h.Service.AnalyzeCustom(ctx, req.Chords)
	if err != nil {
		h.writeServiceError(w, logger, err)
		return
	}

	logger.Info("custom progression analyzed",
		zap.Int("chord_count", len(req.Chords)),
		zap.Duration("total_latency", time.Since(start)),
	)

	writeResult(w, result)
}

// writeServiceError maps orchestrator failures to user-facing responses.
// Transient failures were already absorbed by the retry executor; what
// reaches here is terminal for this request.
func (h *ProgressionHandler) writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case music.IsValidationError(err):
		logger.Error("provider returned invalid response", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"the AI service returned an invalid response, please try again", codeAPIValidation)

	case errors.Is(err, resilience.ErrCircuitOpen):
		logger.Warn("request rejected, circuit breaker open", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"the AI service is temporarily unavailable, circuit breaker active", codeUnavailable)

	case isTimeout(err):
		logger.Error("provider request timed out", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"the AI request timed out, please try again", codeTimeout)

	case errors.Is(err, resilience.ErrRetriesExhausted):
		logger.Error("provider retries exhausted", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"the AI service is temporarily unavailable, please try again later", codeUnavailable)

	default:
		// Unexpected: log full detail, return a generic message.
		logger.Error("progression request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"something went wrong, please try again later", codeInternal)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timed out")
}

// writeResult sends a validated result with the public cache header
// matching the server-side TTL.
func writeResult(w http.ResponseWriter, result *music.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code})
}
