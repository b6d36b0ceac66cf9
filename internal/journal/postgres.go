// Package journal persists the trading record: fills and session summaries
// go to PostgreSQL, live telemetry fans out over Redis. Journaling sits off
// the decision path; a slow or down journal never stalls the pipeline.
package journal

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGConfig holds connection parameters for the PostgreSQL journal.
type PGConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
}

// DSN builds a connection string; an explicit DSN wins over the parts.
func (cfg PGConfig) dsn() string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database, sslMode,
	)
}

// PGJournal writes fills and session summaries through a pgx pool.
type PGJournal struct {
	pool *pgxpool.Pool
}

// NewPGJournal connects, pings, and applies pending migrations.
func NewPGJournal(ctx context.Context, cfg PGConfig) (*PGJournal, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("journal: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}

	j := &PGJournal{pool: pool}
	if err := j.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// Close shuts down the connection pool.
func (j *PGJournal) Close() { j.pool.Close() }

// runMigrations applies embedded SQL files in lexicographic order, tracking
// applied files in schema_migrations.
func (j *PGJournal) runMigrations(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
	if _, err := j.pool.Exec(ctx, createTracker); err != nil {
		return fmt.Errorf("journal: create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("journal: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name() < entries[k].Name()
	})

	for _, entry := range entries {
		name := entry.Name()
		var applied bool
		err := j.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("journal: check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		sql, err := fs.ReadFile(migrationsFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("journal: read migration %s: %w", name, err)
		}
		if _, err := j.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("journal: apply migration %s: %w", name, err)
		}
		if _, err := j.pool.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, name,
		); err != nil {
			return fmt.Errorf("journal: record migration %s: %w", name, err)
		}
	}
	return nil
}

// InsertFill records one fill of the bot's own orders.
func (j *PGJournal) InsertFill(ctx context.Context, sessionID string, f domain.Fill) error {
	const query = `
		INSERT INTO fills (
			session_id, order_id, symbol, side, price, qty, maker, filled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := j.pool.Exec(ctx, query,
		sessionID, int64(f.OrderID), f.Symbol, string(f.Side),
		f.Price, f.Qty, f.Maker, f.Time,
	)
	if err != nil {
		return fmt.Errorf("journal: insert fill: %w", err)
	}
	return nil
}

// SessionSummary is the end-of-run record of one trading session.
type SessionSummary struct {
	SessionID     string
	Symbol        string
	Strategy      string
	FillCount     int64
	NetPosition   decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	StartedAt     time.Time
	EndedAt       time.Time
}

// InsertSummary records the session summary at shutdown.
func (j *PGJournal) InsertSummary(ctx context.Context, s SessionSummary) error {
	const query = `
		INSERT INTO sessions (
			session_id, symbol, strategy, fill_count,
			net_position, realized_pnl, unrealized_pnl,
			started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := j.pool.Exec(ctx, query,
		s.SessionID, s.Symbol, s.Strategy, s.FillCount,
		s.NetPosition, s.RealizedPnL, s.UnrealizedPnL,
		s.StartedAt, s.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: insert summary: %w", err)
	}
	return nil
}
