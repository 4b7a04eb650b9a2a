package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/config"
)

// New creates the adapter for the configured driver.
func New(ctx context.Context, cfg *config.DatasourceConfig, logger *zap.Logger) (Adapter, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresAdapter(ctx, cfg.ConnectionString(), cfg.SchemaName, logger)
	case "mssql":
		return NewMSSQLAdapter(mssqlConnString(cfg), cfg.SchemaName, logger)
	case "duckdb":
		return NewDuckDBAdapter(cfg.Path, cfg.SchemaName, logger)
	default:
		return nil, fmt.Errorf("unsupported datasource driver %q", cfg.Driver)
	}
}

// mssqlConnString builds a sqlserver:// URL, escaping credentials.
func mssqlConnString(cfg *config.DatasourceConfig) string {
	query := url.Values{}
	query.Set("database", cfg.Database)

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
