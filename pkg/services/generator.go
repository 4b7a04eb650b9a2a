package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/logging"
	"github.com/askdb-inc/askdb-engine/pkg/metrics"
	"github.com/askdb-inc/askdb-engine/pkg/policy"
	"github.com/askdb-inc/askdb-engine/pkg/prompts"
	"github.com/askdb-inc/askdb-engine/pkg/retry"
	"github.com/askdb-inc/askdb-engine/pkg/schema"
	sqlval "github.com/askdb-inc/askdb-engine/pkg/sql"
)

const (
	generationMaxAttempts = 3
	generationTemperature = 0.1
)

// GenerationResult is a validated, sanitized statement ready to execute.
type GenerationResult struct {
	SQL         string
	Explanation string
	// Confidence is the model's self-reported score from the JSON
	// response, zero when absent. Informational only.
	Confidence float64
	Attempts   int
	Warnings   []string
}

// GeneratorService turns a question into validated SQL. Each rejected
// attempt feeds its validation errors back into the next prompt, up to
// generationMaxAttempts.
type GeneratorService struct {
	client    llm.Client
	validator *sqlval.Validator
	logger    *zap.Logger
}

// NewGeneratorService creates a generator. If logger is nil, a no-op
// logger is used.
func NewGeneratorService(client llm.Client, validator *sqlval.Validator, logger *zap.Logger) *GeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneratorService{
		client:    client,
		validator: validator,
		logger:    logger.Named("generator"),
	}
}

// Generate produces validated SQL for the question, or fails after the
// attempt budget. A security violation aborts immediately; feeding an
// attack signature back to the model as a correction hint is not a
// retry case.
func (s *GeneratorService) Generate(ctx context.Context, snapshot *schema.Snapshot, pol *policy.Policy, question string) (*GenerationResult, error) {
	basePrompt := prompts.BuildGenerationPrompt(snapshot, pol, question)
	prompt := basePrompt

	var lastErrors []string

	for attempt := 1; attempt <= generationMaxAttempts; attempt++ {
		raw, err := s.complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("llm completion: %w", err)
		}

		candidate, explanation, confidence := parseResponse(raw)
		if candidate == "" {
			s.logger.Warn("no SQL in model response", zap.Int("attempt", attempt))
			lastErrors = []string{"response contained no SQL statement"}
			if attempt < generationMaxAttempts {
				metrics.IncrementGenerationRetry()
				prompt = prompts.BuildRetryPrompt(basePrompt, raw, lastErrors)
				continue
			}
			return nil, apperrors.ErrNoSQLGenerated
		}

		result, err := s.validator.Validate(pol, candidate)
		if err != nil {
			return nil, err
		}

		if result.IsValid {
			s.logger.Info("sql generated",
				zap.Int("attempt", attempt),
				zap.String("sql", logging.SanitizeSQL(result.SanitizedSQL)))
			return &GenerationResult{
				SQL:         result.SanitizedSQL,
				Explanation: explanation,
				Confidence:  confidence,
				Attempts:    attempt,
				Warnings:    result.Warnings,
			}, nil
		}

		s.logger.Warn("generated sql rejected",
			zap.Int("attempt", attempt),
			zap.Strings("errors", result.Errors))
		lastErrors = result.Errors

		if attempt < generationMaxAttempts {
			metrics.IncrementGenerationRetry()
			prompt = prompts.BuildRetryPrompt(basePrompt, candidate, result.Errors)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %s",
		apperrors.ErrGenerationExhausted, generationMaxAttempts, strings.Join(lastErrors, "; "))
}

// complete calls the model, retrying transient transport failures.
func (s *GeneratorService) complete(ctx context.Context, prompt string) (string, error) {
	return retry.DoWithResult(ctx, retry.DefaultConfig(), func() (string, error) {
		return s.client.GenerateResponse(ctx, prompt, prompts.SQLGenerationSystemPrompt, generationTemperature)
	})
}

var (
	jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
	sqlFencePattern  = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)\\s*```")
	selectPattern    = regexp.MustCompile(`(?is)\bSELECT\b.*?(?:;|$)`)
)

// generationResponse is the JSON shape the system prompt asks for.
type generationResponse struct {
	SQL         string  `json:"sql"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

// parseResponse extracts the SQL statement from a model response. Three
// layers of leniency: the requested JSON object (bare or fenced), a
// fenced SQL block, and finally the first SELECT in free text.
func parseResponse(raw string) (sqlText, explanation string, confidence float64) {
	trimmed := strings.TrimSpace(raw)

	jsonText := trimmed
	if m := jsonFencePattern.FindStringSubmatch(trimmed); m != nil {
		jsonText = m[1]
	}
	var resp generationResponse
	if err := json.Unmarshal([]byte(jsonText), &resp); err == nil && strings.TrimSpace(resp.SQL) != "" {
		return strings.TrimSpace(resp.SQL), strings.TrimSpace(resp.Explanation), resp.Confidence
	}

	if m := sqlFencePattern.FindStringSubmatch(trimmed); m != nil {
		if candidate := strings.TrimSpace(m[1]); candidate != "" {
			return candidate, "", 0
		}
	}

	if m := selectPattern.FindString(trimmed); m != "" {
		return strings.TrimSpace(m), "", 0
	}

	return "", "", 0
}
