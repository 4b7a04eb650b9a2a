// Package safety screens incoming questions before they reach SQL
// generation. It catches inputs that are attacks on the pipeline itself,
// either SQL fragments smuggled into the question or attempts to steer
// the generator off its task.
package safety

import (
	"context"
	"fmt"
	"regexp"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/config"
)

// Verdict is the result of screening one question.
type Verdict struct {
	Safe   bool
	Reason string
}

// Checker screens a natural-language question. Implementations may be
// local heuristics or remote moderation services.
type Checker interface {
	Check(ctx context.Context, question string) (*Verdict, error)
}

// steeringPatterns catch prompt-steering attempts in the question text.
var steeringPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(the\s+)?(system|previous)\s+(prompt|instructions)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s`),
	regexp.MustCompile(`(?i)\bnew\s+instructions\s*:`),
}

// LocalChecker screens questions without leaving the process: SQL
// fingerprinting via libinjection plus steering-phrase patterns.
type LocalChecker struct {
	logger *zap.Logger
}

// NewLocalChecker creates a local checker. If logger is nil, a no-op
// logger is used.
func NewLocalChecker(logger *zap.Logger) *LocalChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalChecker{logger: logger.Named("safety")}
}

// Check screens the question. It never returns an error; local
// heuristics cannot fail.
func (c *LocalChecker) Check(_ context.Context, question string) (*Verdict, error) {
	if isSQLi, fingerprint := libinjection.IsSQLi(question); isSQLi {
		return &Verdict{
			Safe:   false,
			Reason: fmt.Sprintf("SQL fragment in question (fingerprint %s)", string(fingerprint)),
		}, nil
	}

	for _, pattern := range steeringPatterns {
		if pattern.MatchString(question) {
			return &Verdict{Safe: false, Reason: "prompt steering attempt"}, nil
		}
	}

	return &Verdict{Safe: true}, nil
}

var _ Checker = (*LocalChecker)(nil)

// Gate applies a checker according to configuration. FailMode decides
// what happens when the checker itself errors: "closed" rejects the
// question, "open" lets it through to validation.
type Gate struct {
	checker  Checker
	enabled  bool
	failOpen bool
	logger   *zap.Logger
}

// NewGate creates a gate over the given checker. If logger is nil, a
// no-op logger is used.
func NewGate(checker Checker, cfg config.SafetyConfig, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		checker:  checker,
		enabled:  cfg.Enabled,
		failOpen: cfg.FailMode == "open",
		logger:   logger.Named("safety_gate"),
	}
}

// Screen returns nil when the question may proceed, or an error naming
// the rejection reason.
func (g *Gate) Screen(ctx context.Context, question string) error {
	if !g.enabled {
		return nil
	}

	verdict, err := g.checker.Check(ctx, question)
	if err != nil {
		if g.failOpen {
			g.logger.Warn("safety check failed, continuing (fail-open)", zap.Error(err))
			return nil
		}
		return fmt.Errorf("safety check unavailable: %w", err)
	}

	if !verdict.Safe {
		g.logger.Warn("question rejected by safety check", zap.String("reason", verdict.Reason))
		return fmt.Errorf("question rejected: %s", verdict.Reason)
	}

	return nil
}
