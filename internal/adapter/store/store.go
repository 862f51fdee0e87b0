// Package store archives completed analyses in a SQL database so they can be
// fetched and exported after a newer analysis has replaced them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no analysis has the requested ID.
var ErrNotFound = errors.New("analysis not found")

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	region     TEXT NOT NULL,
	payload    TEXT NOT NULL
)`

// Store persists analyses through sqlx. Supported drivers are "sqlite"
// (modernc.org/sqlite) and "postgres" (lib/pq).
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the database, verifies the connection, and creates the
// analyses table when missing.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// A single connection keeps ":memory:" databases alive and serializes
		// writers.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate analyses table: %w", err)
	}

	logger.Info("analysis store ready", "driver", driver)
	return &Store{db: db, logger: logger}, nil
}

// record is the row shape of the analyses table.
type record struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Region    string    `db:"region"`
	Payload   string    `db:"payload"`
}

// payload is what the payload column holds. The paired series travel with the
// analysis so archived entries can still derive a time series.
type payload struct {
	Request    domain.AnalysisRequest     `json:"request"`
	Normalized *domain.NormalizedAnalysis `json:"normalized"`
	Paired     domain.PairedSeries        `json:"paired"`
}

// Save inserts an analysis. Saving an ID twice is an error.
func (s *Store) Save(ctx context.Context, a *domain.Analysis) error {
	region, err := json.Marshal(a.Request.Region)
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	body, err := json.Marshal(payload{Request: a.Request, Normalized: a.Normalized, Paired: a.Paired})
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	query := s.db.Rebind(`INSERT INTO analyses (id, created_at, region, payload) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, a.ID, a.CompletedAt.UTC(), string(region), string(body)); err != nil {
		return fmt.Errorf("insert analysis %s: %w", a.ID, err)
	}
	s.logger.Debug("analysis archived", "id", a.ID)
	return nil
}

// Get loads an analysis by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	var rec record
	query := s.db.Rebind(`SELECT id, created_at, region, payload FROM analyses WHERE id = ?`)
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select analysis %s: %w", id, err)
	}
	return rec.analysis()
}

// Recent returns up to limit analyses, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	var recs []record
	query := s.db.Rebind(`SELECT id, created_at, region, payload FROM analyses ORDER BY created_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("select recent analyses: %w", err)
	}
	out := make([]*domain.Analysis, 0, len(recs))
	for _, rec := range recs {
		a, err := rec.analysis()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r record) analysis() (*domain.Analysis, error) {
	var p payload
	if err := json.Unmarshal([]byte(r.Payload), &p); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", r.ID, err)
	}
	return &domain.Analysis{
		ID:          r.ID,
		Request:     p.Request,
		Normalized:  p.Normalized,
		Paired:      p.Paired,
		CompletedAt: r.CreatedAt.UTC(),
	}, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("store health check: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
