package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/restosync/pos-agent/internal/config"
)

func seedPOSDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pos.db")

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer db.Close()

	const ddl = `
		CREATE TABLE orderheaders (id INTEGER PRIMARY KEY, total REAL, order_date DATETIME);
		CREATE TABLE orderpayments (id INTEGER PRIMARY KEY, amount REAL, pay_date DATETIME);
	`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("seed ddl: %v", err)
	}

	day := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := db.Exec(`INSERT INTO orderheaders (total, order_date) VALUES (?, ?)`,
			float64(10+i), day); err != nil {
			t.Fatalf("seed orders: %v", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO orderpayments (amount, pay_date) VALUES (?, ?)`,
		12.5, day); err != nil {
		t.Fatalf("seed payments: %v", err)
	}

	return path
}

func testSourceConfig(path string) config.SourceConfig {
	return config.SourceConfig{
		Strategies: []config.StrategyConfig{
			{Name: "local-export", Driver: "sqlite3", DSN: path},
		},
		Queries: map[string]string{
			"orderheaders":  `SELECT id, total FROM orderheaders WHERE order_date >= ? AND order_date < ?`,
			"orderpayments": `SELECT id, amount FROM orderpayments WHERE pay_date >= ? AND pay_date < ?`,
		},
	}
}

func TestExtractGroupsByCollection(t *testing.T) {
	path := seedPOSDatabase(t)
	s := NewSQL(testSourceConfig(path), zap.NewNop())
	defer s.Close()

	start := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	result, err := s.Extract(context.Background(), start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(result["orderheaders"]) != 3 {
		t.Errorf("orderheaders: got %d records, want 3", len(result["orderheaders"]))
	}
	if len(result["orderpayments"]) != 1 {
		t.Errorf("orderpayments: got %d records, want 1", len(result["orderpayments"]))
	}
	if result.TotalRecords() != 4 {
		t.Errorf("total: got %d, want 4", result.TotalRecords())
	}
}

func TestExtractEmptyRangeIsNotAnError(t *testing.T) {
	path := seedPOSDatabase(t)
	s := NewSQL(testSourceConfig(path), zap.NewNop())
	defer s.Close()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := s.Extract(context.Background(), start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("empty range must not error: %v", err)
	}
	if result.TotalRecords() != 0 {
		t.Errorf("expected empty result, got %d records", result.TotalRecords())
	}
	// collections present but empty, so the chunker sees the shape
	if _, ok := result["orderheaders"]; !ok {
		t.Errorf("empty collection missing from result")
	}
}

func TestConnectFallsBackAcrossStrategies(t *testing.T) {
	path := seedPOSDatabase(t)
	cfg := testSourceConfig(path)
	cfg.Strategies = []config.StrategyConfig{
		{Name: "broken", Driver: "no-such-driver", DSN: "whatever"},
		{Name: "local-export", Driver: "sqlite3", DSN: path},
	}

	s := NewSQL(cfg, zap.NewNop())
	defer s.Close()

	start := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	result, err := s.Extract(context.Background(), start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("fallback strategy should have connected: %v", err)
	}
	if result.TotalRecords() != 4 {
		t.Errorf("total: got %d, want 4", result.TotalRecords())
	}
}

func TestConnectAllStrategiesFail(t *testing.T) {
	cfg := config.SourceConfig{
		Strategies: []config.StrategyConfig{
			{Name: "broken", Driver: "no-such-driver", DSN: "x"},
		},
		Queries: map[string]string{"orders": `SELECT 1`},
	}

	s := NewSQL(cfg, zap.NewNop())
	defer s.Close()

	_, err := s.Extract(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected unreachable-source error")
	}
}
