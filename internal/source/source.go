// Package source reads transactional records out of the local
// point-of-sale database. Connectivity is a closed list of strategies
// tried in priority order with fallback; extraction is one configured
// query per collection.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/restosync/pos-agent/internal/config"
	"github.com/restosync/pos-agent/internal/model"
)

// DataSource produces raw records for a date range. An empty range
// yields an empty result, not an error; errors mean the underlying
// store is unreachable or the query failed.
type DataSource interface {
	Extract(ctx context.Context, start, end time.Time) (model.ExtractionResult, error)
}

// SQLSource implements DataSource over a SQL database reached through
// an ordered list of connection strategies. The connection is cached
// once a strategy succeeds and re-established on the next Extract if
// it goes away.
type SQLSource struct {
	strategies []config.StrategyConfig
	queries    map[string]string
	log        *zap.Logger

	mu sync.Mutex
	db *sqlx.DB
}

func NewSQL(cfg config.SourceConfig, log *zap.Logger) *SQLSource {
	return &SQLSource{
		strategies: cfg.Strategies,
		queries:    cfg.Queries,
		log:        log,
	}
}

// connect returns the cached connection or walks the strategy list.
func (s *SQLSource) connect(ctx context.Context) (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err == nil {
			return s.db, nil
		}
		_ = s.db.Close()
		s.db = nil
	}

	if len(s.strategies) == 0 {
		return nil, fmt.Errorf("no source strategies configured")
	}

	var lastErr error
	for _, st := range s.strategies {
		db, err := openDB(ctx, st.Driver, st.DSN)
		if err != nil {
			s.log.Warn("source strategy failed",
				zap.String("strategy", st.Name),
				zap.String("driver", st.Driver),
				zap.Error(err))
			lastErr = err
			continue
		}
		s.log.Info("source connected", zap.String("strategy", st.Name))
		s.db = db
		return db, nil
	}

	return nil, fmt.Errorf("all %d source strategies failed: %w", len(s.strategies), lastErr)
}

// Extract runs every configured collection query with [start, end)
// bindings and groups the rows by collection name.
func (s *SQLSource) Extract(ctx context.Context, start, end time.Time) (model.ExtractionResult, error) {
	db, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(s.queries))
	for name := range s.queries {
		names = append(names, name)
	}
	sort.Strings(names)

	result := model.ExtractionResult{}
	for _, name := range names {
		records, err := s.queryCollection(ctx, db, s.queries[name], start, end)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
		result[name] = records
	}

	return result, nil
}

func (s *SQLSource) queryCollection(ctx context.Context, db *sqlx.DB, query string, start, end time.Time) ([]model.Record, error) {
	rows, err := db.QueryxContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		records = append(records, normalize(row))
	}
	return records, rows.Err()
}

// normalize turns driver-specific scan types into JSON-friendly values;
// the mysql driver hands text columns back as []byte.
func normalize(row map[string]any) model.Record {
	rec := model.Record{}
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
			continue
		}
		rec[k] = v
	}
	return rec
}

// StrategyStatus is one probe outcome, for diagnostics.
type StrategyStatus struct {
	Name string
	Err  error
}

// Probe tries every strategy independently and reports each outcome.
// Used by the doctor command; the sync path uses connect instead.
func (s *SQLSource) Probe(ctx context.Context) []StrategyStatus {
	out := make([]StrategyStatus, 0, len(s.strategies))
	for _, st := range s.strategies {
		db, err := openDB(ctx, st.Driver, st.DSN)
		if err == nil {
			_ = db.Close()
		}
		out = append(out, StrategyStatus{Name: st.Name, Err: err})
	}
	return out
}

func (s *SQLSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
