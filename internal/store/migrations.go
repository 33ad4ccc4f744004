package store

import "fmt"

// migrate creates all tables if they don't exist and marks bootstrap
// completion in the meta table so future schema evolution can branch on it.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		// Study cycles
		`CREATE TABLE IF NOT EXISTS clusters (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_name   TEXT NOT NULL,
			phase          TEXT NOT NULL,
			total_projects INTEGER DEFAULT 0,
			total_mw       REAL,
			created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(cluster_name, phase)
		)`,

		// Project cost records, one per (project id, cluster)
		`CREATE TABLE IF NOT EXISTS projects (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id              TEXT NOT NULL,
			cluster_id              INTEGER NOT NULL REFERENCES clusters(id),
			utility                 TEXT,
			developer               TEXT,
			state                   TEXT,
			county                  TEXT,
			fuel_type               TEXT,
			mw_capacity             REAL,
			mw_energy               REAL,
			project_status          TEXT,
			total_cost              REAL,
			cost_per_kw             REAL,
			toif_cost               REAL,
			stand_alone_cost        REAL,
			network_upgrade_cost    REAL,
			system_reliability_cost REAL,
			rd1_amount              REAL,
			rd2_amount              REAL,
			report_url              TEXT,
			scraped_at              DATETIME,
			risk_score_overall       REAL,
			risk_score_cost          REAL,
			risk_score_concentration REAL,
			risk_score_dependency    REAL,
			risk_score_complexity    REAL,
			cost_rank               INTEGER,
			cost_percentile         REAL,
			UNIQUE(project_id, cluster_id)
		)`,

		// Shared network upgrades, de-duplicated by natural key
		`CREATE TABLE IF NOT EXISTS upgrades (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_id      INTEGER NOT NULL REFERENCES clusters(id),
			rtep_id         TEXT NOT NULL,
			to_id           TEXT NOT NULL DEFAULT '',
			utility         TEXT,
			title           TEXT,
			total_cost      REAL,
			shared_by_count INTEGER,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(cluster_id, rtep_id, to_id)
		)`,

		// Project-to-upgrade cost allocation links
		`CREATE TABLE IF NOT EXISTS project_upgrades (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id         TEXT NOT NULL,
			upgrade_id         INTEGER NOT NULL REFERENCES upgrades(id),
			cluster_id         INTEGER NOT NULL REFERENCES clusters(id),
			link_type          TEXT NOT NULL CHECK(link_type IN ('COST_ALLOCATED','TAGGED_NO_COST')),
			mw_impact          REAL,
			percent_allocation REAL,
			allocated_cost     REAL,
			created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(project_id, upgrade_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_projects_cluster ON projects(cluster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_upgrades_cluster ON upgrades(cluster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_links_cluster ON project_upgrades(cluster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_links_upgrade ON project_upgrades(upgrade_id)`,
		`CREATE INDEX IF NOT EXISTS idx_links_type ON project_upgrades(link_type)`,

		// Metadata table
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrap DDL: %w", err)
		}
	}

	if _, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_bootstrap_complete', '1')
		 ON CONFLICT(key) DO NOTHING`,
	); err != nil {
		return fmt.Errorf("marking bootstrap complete: %w", err)
	}
	return nil
}
