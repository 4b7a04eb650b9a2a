package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/cache"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/metrics"
	"github.com/askdb-inc/askdb-engine/pkg/policy"
	"github.com/askdb-inc/askdb-engine/pkg/safety"
	"github.com/askdb-inc/askdb-engine/pkg/schema"
	sqlval "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// Answer sources.
const (
	SourcePatternCache  = "pattern_cache"
	SourceSemanticCache = "semantic_cache"
	SourceGenerated     = "generated"
)

// Answer is the outcome of one question through the pipeline.
type Answer struct {
	RequestID   string
	Question    string
	SQL         string
	Source      string
	Explanation string
	Warnings    []string
	Result      *datasource.QueryResult
	Elapsed     time.Duration
}

// QueryService orchestrates the full pipeline: safety screen, cache
// lookups, generation, validation, execution. Only SQL that passed
// validation under the current policy is executed or cached.
type QueryService struct {
	schemaSvc     *schema.Service
	patternCache  *cache.PatternCache
	semanticCache *cache.SemanticCache
	generator     *GeneratorService
	validator     *sqlval.Validator
	gate          *safety.Gate
	executor      datasource.Adapter
	validatorCfg  config.ValidatorConfig
	staticPolicy  *policy.Policy
	logger        *zap.Logger
}

// QueryServiceParams collects the pipeline's collaborators.
type QueryServiceParams struct {
	SchemaService *schema.Service
	PatternCache  *cache.PatternCache
	SemanticCache *cache.SemanticCache
	Generator     *GeneratorService
	Validator     *sqlval.Validator
	Gate          *safety.Gate
	Executor      datasource.Adapter
	ValidatorCfg  config.ValidatorConfig
	// StaticPolicy, when set, replaces the schema-derived allowlist.
	StaticPolicy *policy.Policy
	Logger       *zap.Logger
}

// NewQueryService wires the pipeline. If Logger is nil, a no-op logger
// is used.
func NewQueryService(p QueryServiceParams) *QueryService {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		schemaSvc:     p.SchemaService,
		patternCache:  p.PatternCache,
		semanticCache: p.SemanticCache,
		generator:     p.Generator,
		validator:     p.Validator,
		gate:          p.Gate,
		executor:      p.Executor,
		validatorCfg:  p.ValidatorCfg,
		staticPolicy:  p.StaticPolicy,
		logger:        logger.Named("query"),
	}
}

// Ask answers a natural-language question. Cached SQL is revalidated
// against the current policy before reuse, so allowlist drift cannot
// resurrect a statement that is no longer permitted.
func (s *QueryService) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	answer, err := s.ask(ctx, question)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		answer.Elapsed = elapsed
		metrics.ObserveQuery("ok", elapsed)
	case isSecurityViolation(err):
		metrics.IncrementSecurityViolation()
		metrics.ObserveQuery("blocked", elapsed)
	case errors.Is(err, apperrors.ErrEmptyQuestion), strings.Contains(err.Error(), "question rejected"):
		metrics.ObserveQuery("rejected", elapsed)
	default:
		metrics.ObserveQuery("error", elapsed)
	}

	return answer, err
}

func (s *QueryService) ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrEmptyQuestion
	}

	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID))

	if err := s.gate.Screen(ctx, question); err != nil {
		return nil, err
	}

	snapshot, pol, err := s.currentPolicy(ctx)
	if err != nil {
		return nil, err
	}

	answer := &Answer{RequestID: requestID, Question: question}

	if cached, ok := s.patternCache.Get(question); ok {
		metrics.ObserveCacheLookup("pattern", true)
		if s.stillValid(pol, cached) {
			logger.Debug("pattern cache hit")
			answer.SQL = cached
			answer.Source = SourcePatternCache
			return s.execute(ctx, answer)
		}
		logger.Info("cached sql no longer valid under current policy, regenerating")
	} else {
		metrics.ObserveCacheLookup("pattern", false)
	}

	if cached, ok := s.semanticCache.Get(ctx, question); ok {
		metrics.ObserveCacheLookup("semantic", true)
		if s.stillValid(pol, cached) {
			logger.Debug("semantic cache hit")
			answer.SQL = cached
			answer.Source = SourceSemanticCache
			return s.execute(ctx, answer)
		}
	} else {
		metrics.ObserveCacheLookup("semantic", false)
	}

	generated, err := s.generator.Generate(ctx, snapshot, pol, question)
	if err != nil {
		return nil, err
	}
	metrics.ObserveValidation(true)

	s.patternCache.Put(question, generated.SQL)
	s.semanticCache.Put(ctx, question, generated.SQL)

	answer.SQL = generated.SQL
	answer.Source = SourceGenerated
	answer.Explanation = generated.Explanation
	answer.Warnings = generated.Warnings

	return s.execute(ctx, answer)
}

// currentPolicy resolves the active allowlist: the static file policy
// when configured, otherwise one derived from the schema snapshot. The
// snapshot is returned as well for prompt context.
func (s *QueryService) currentPolicy(ctx context.Context) (*schema.Snapshot, *policy.Policy, error) {
	snapshot, err := s.schemaSvc.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("schema discovery: %w", err)
	}

	if s.staticPolicy != nil {
		return snapshot, s.staticPolicy, nil
	}

	return snapshot, schema.BuildPolicy(snapshot, s.validatorCfg), nil
}

// stillValid revalidates cached SQL against the current policy.
func (s *QueryService) stillValid(pol *policy.Policy, sqlText string) bool {
	result, err := s.validator.Validate(pol, sqlText)
	if err != nil {
		return false
	}
	return result.IsValid
}

func (s *QueryService) execute(ctx context.Context, answer *Answer) (*Answer, error) {
	result, err := s.executor.Query(ctx, answer.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute validated query: %w", err)
	}
	answer.Result = result
	return answer, nil
}

// Validate checks a caller-supplied statement against the current policy
// without executing it. Backs the validate CLI command.
func (s *QueryService) Validate(ctx context.Context, sqlText string) (*sqlval.Result, error) {
	_, pol, err := s.currentPolicy(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.validator.Validate(pol, sqlText)
	if err == nil {
		metrics.ObserveValidation(result.IsValid)
	}
	return result, err
}

// Schema returns the current snapshot for display.
func (s *QueryService) Schema(ctx context.Context) (*schema.Snapshot, error) {
	return s.schemaSvc.Snapshot(ctx)
}

// InvalidateSchema drops the cached snapshot so the next call rediscovers.
func (s *QueryService) InvalidateSchema() {
	s.schemaSvc.Invalidate()
}

// CacheStats reports both cache layers.
func (s *QueryService) CacheStats() (pattern, semantic cache.Stats) {
	return s.patternCache.Stats(), s.semanticCache.Stats()
}

func isSecurityViolation(err error) bool {
	var violation *sqlval.SecurityViolationError
	return errors.As(err, &violation)
}
