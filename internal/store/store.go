// Package store provides the SQLite relational model for the pipeline.
//
// Four tables hold the graph: clusters (one per study cycle + phase),
// projects (one per project id within a cluster), upgrades (shared network
// upgrades, de-duplicated by natural key), and project_upgrades (the links
// carrying cost allocations between them). All writes are idempotent
// upserts keyed on natural keys, so re-loading a batch never duplicates
// rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Link types on project_upgrades. The tag is derived solely from whether
// the allocated cost is strictly positive.
const (
	LinkCostAllocated = "COST_ALLOCATED"
	LinkTaggedNoCost  = "TAGGED_NO_COST"
)

// StoreConfig controls store creation.
type StoreConfig struct {
	DBPath string // ":memory:" for tests
}

// SQLiteStore is the concrete store backed by a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if necessary) the database at cfg.DBPath and
// runs schema bootstrap.
func NewStore(cfg StoreConfig) (*SQLiteStore, error) {
	path := cfg.DBPath
	if path == "" {
		return nil, fmt.Errorf("store: DBPath is required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single writer connection sidesteps interleaved-transaction locking;
	// loads are serialized per cluster anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("applying %s: %w", p, err)
		}
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Cluster is one study cycle + phase. Created on first reference during a
// load; never deleted.
type Cluster struct {
	ID            int64
	ClusterName   string
	Phase         string
	TotalProjects int
	TotalMW       *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EnsureCluster returns the cluster row for (name, phase), creating it when
// absent.
func (s *SQLiteStore) EnsureCluster(ctx context.Context, name, phase string) (*Cluster, error) {
	c := &Cluster{ClusterName: name, Phase: phase}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, total_projects, total_mw FROM clusters WHERE cluster_name = ? AND phase = ?`,
		name, phase,
	).Scan(&c.ID, &c.TotalProjects, &c.TotalMW)
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("looking up cluster %s/%s: %w", name, phase, err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO clusters (cluster_name, phase, total_projects, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)`,
		name, phase, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating cluster %s/%s: %w", name, phase, err)
	}
	c.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading cluster id: %w", err)
	}
	return c, nil
}

// GetCluster fetches a cluster by name and phase, or nil when absent.
func (s *SQLiteStore) GetCluster(ctx context.Context, name, phase string) (*Cluster, error) {
	c := &Cluster{ClusterName: name, Phase: phase}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, total_projects, total_mw, created_at, updated_at
		 FROM clusters WHERE cluster_name = ? AND phase = ?`,
		name, phase,
	).Scan(&c.ID, &c.TotalProjects, &c.TotalMW, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cluster %s/%s: %w", name, phase, err)
	}
	return c, nil
}
