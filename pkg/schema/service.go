package schema

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/config"
)

// systemPrefixes mark tables excluded from discovery. Internal and
// system tables never enter the allowlist or the prompt context.
var systemPrefixes = []string{"_", "sys"}

// Service discovers schema through an introspector and caches the result
// until the TTL expires. Safe for concurrent use; readers get an atomic
// snapshot while a refresh builds its replacement off to the side.
type Service struct {
	introspector datasource.Introspector
	ttl          time.Duration
	maxTables    int
	sampleRows   int
	logger       *zap.Logger

	now func() time.Time

	mu        sync.RWMutex
	snapshot  *Snapshot
	expiresAt time.Time
}

// NewService creates a schema service. If logger is nil, a no-op logger
// is used.
func NewService(introspector datasource.Introspector, cfg config.SchemaConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		introspector: introspector,
		ttl:          cfg.SchemaTTL(),
		maxTables:    cfg.MaxTables,
		sampleRows:   cfg.SampleRows,
		logger:       logger.Named("schema"),
		now:          time.Now,
	}
}

// Snapshot returns the cached snapshot, refreshing it first when absent
// or expired.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Before(s.expiresAt) {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	return s.Refresh(ctx)
}

// Refresh discovers the schema and replaces the cached snapshot. On
// failure the previous snapshot stays in place, expired but usable for a
// caller that prefers stale data over none.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	start := s.now()

	tables, err := s.introspector.ListTables(ctx)
	if err != nil {
		return nil, &DiscoveryError{Stage: "table listing", Err: err}
	}

	filtered := make([]datasource.Table, 0, len(tables))
	for _, t := range tables {
		if isSystemTable(t.Name) {
			continue
		}
		filtered = append(filtered, t)
	}

	truncated := false
	if s.maxTables > 0 && len(filtered) > s.maxTables {
		s.logger.Warn("table count exceeds maximum, truncating",
			zap.Int("discovered", len(filtered)),
			zap.Int("max_tables", s.maxTables))
		filtered = filtered[:s.maxTables]
		truncated = true
	}

	snapshot := &Snapshot{
		Tables:       make([]TableSchema, 0, len(filtered)),
		DiscoveredAt: start,
		Truncated:    truncated,
	}

	for _, t := range filtered {
		columns, err := s.introspector.ListColumns(ctx, t.Name)
		if err != nil {
			return nil, &DiscoveryError{Stage: "column listing for " + t.Name, Err: err}
		}

		ts := TableSchema{
			Name:     t.Name,
			Schema:   t.Schema,
			RowCount: t.RowCount,
			Columns:  make([]ColumnSchema, 0, len(columns)),
		}
		for _, c := range columns {
			ts.Columns = append(ts.Columns, ColumnSchema{
				Name:       c.Name,
				DataType:   c.DataType,
				IsNullable: c.IsNullable,
				IsPrimary:  c.IsPrimary,
			})
		}

		// Sample failures are tolerable; the table still enters the
		// snapshot without example rows.
		if s.sampleRows > 0 {
			result, err := s.introspector.SampleRows(ctx, t.Name, s.sampleRows)
			if err != nil {
				s.logger.Debug("sample rows unavailable",
					zap.String("table", t.Name),
					zap.Error(err))
			} else {
				ts.SampleRows = result.Rows
			}
		}

		snapshot.Tables = append(snapshot.Tables, ts)
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.expiresAt = start.Add(s.ttl)
	s.mu.Unlock()

	s.logger.Info("schema discovered",
		zap.Int("tables", len(snapshot.Tables)),
		zap.Bool("truncated", truncated),
		zap.Duration("elapsed", s.now().Sub(start)))

	return snapshot, nil
}

// TableSchema returns one table from the current snapshot, refreshing if
// needed. Returns apperrors.ErrSchemaNotFound when the table is absent.
func (s *Service) TableSchema(ctx context.Context, name string) (*TableSchema, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := snapshot.Table(name); ok {
		return t, nil
	}
	return nil, apperrors.ErrSchemaNotFound
}

// Invalidate drops the cached snapshot so the next read rediscovers.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

func isSystemTable(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
