package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/cache"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/logging"
	"github.com/askdb-inc/askdb-engine/pkg/policy"
	"github.com/askdb-inc/askdb-engine/pkg/safety"
	"github.com/askdb-inc/askdb-engine/pkg/schema"
	"github.com/askdb-inc/askdb-engine/pkg/services"
	sqlval "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// Execute runs the askdb CLI.
func Execute(version string) error {
	root := &cli.Command{
		Name:    "askdb",
		Usage:   "Ask natural-language questions against an allowlisted SQL datasource",
		Version: version,
		Commands: []*cli.Command{
			AskCommand(version),
			SchemaCommand(version),
			ValidateCommand(version),
		},
	}

	return root.Run(context.Background(), os.Args)
}

// engine holds the wired pipeline for one CLI invocation.
type engine struct {
	cfg    *config.Config
	logger *zap.Logger
	source datasource.Adapter
	query  *services.QueryService
}

func newEngine(ctx context.Context, version string) (*engine, error) {
	cfg, err := config.Load(version)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, err
	}

	source, err := datasource.New(ctx, &cfg.Datasource, logger)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.AI, logger)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	var staticPolicy *policy.Policy
	if cfg.Schema.AllowlistPath != "" {
		staticPolicy, err = policy.LoadFile(cfg.Schema.AllowlistPath)
		if err != nil {
			_ = source.Close()
			return nil, err
		}
	}

	validator := sqlval.NewValidator(logger)

	query := services.NewQueryService(services.QueryServiceParams{
		SchemaService: schema.NewService(source, cfg.Schema, logger),
		PatternCache:  cache.NewPatternCache(cfg.Cache),
		SemanticCache: cache.NewSemanticCache(client, cfg.Cache, logger),
		Generator:     services.NewGeneratorService(client, validator, logger),
		Validator:     validator,
		Gate:          safety.NewGate(safety.NewLocalChecker(logger), cfg.Safety, logger),
		Executor:      source,
		ValidatorCfg:  cfg.Validator,
		StaticPolicy:  staticPolicy,
		Logger:        logger,
	})

	return &engine{
		cfg:    cfg,
		logger: logger,
		source: source,
		query:  query,
	}, nil
}

func (e *engine) Close() {
	if err := e.source.Close(); err != nil {
		e.logger.Warn("closing datasource", zap.Error(err))
	}
	_ = e.logger.Sync()
}
