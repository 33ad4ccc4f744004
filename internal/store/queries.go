package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Project is the stored project record. Pointer fields are NULL-able:
// unknown values stay unknown rather than defaulting, and are excluded
// from aggregates.
type Project struct {
	RowID     int64
	ProjectID string
	ClusterID int64

	Utility       string
	Developer     string
	State         string
	County        string
	FuelType      string
	MWCapacity    *float64
	MWEnergy      *float64
	ProjectStatus string

	TotalCost             *float64
	CostPerKW             *float64
	TOIFCost              *float64
	StandAloneCost        *float64
	NetworkUpgradeCost    *float64
	SystemReliabilityCost *float64
	RD1Amount             *float64
	RD2Amount             *float64
	ReportURL             string

	RiskOverall       *float64
	RiskCost          *float64
	RiskConcentration *float64
	RiskDependency    *float64
	RiskComplexity    *float64
	CostRank          *int64
	CostPercentile    *float64
}

const projectColumns = `id, project_id, cluster_id, utility, developer, state, county,
	fuel_type, mw_capacity, mw_energy, project_status,
	total_cost, cost_per_kw, toif_cost, stand_alone_cost,
	network_upgrade_cost, system_reliability_cost, rd1_amount, rd2_amount, report_url,
	risk_score_overall, risk_score_cost, risk_score_concentration,
	risk_score_dependency, risk_score_complexity, cost_rank, cost_percentile`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	p := &Project{}
	var utility, developer, state, county, fuelType, status, reportURL *string
	err := row.Scan(&p.RowID, &p.ProjectID, &p.ClusterID, &utility, &developer, &state, &county,
		&fuelType, &p.MWCapacity, &p.MWEnergy, &status,
		&p.TotalCost, &p.CostPerKW, &p.TOIFCost, &p.StandAloneCost,
		&p.NetworkUpgradeCost, &p.SystemReliabilityCost, &p.RD1Amount, &p.RD2Amount, &reportURL,
		&p.RiskOverall, &p.RiskCost, &p.RiskConcentration,
		&p.RiskDependency, &p.RiskComplexity, &p.CostRank, &p.CostPercentile)
	if err != nil {
		return nil, err
	}
	p.Utility = deref(utility)
	p.Developer = deref(developer)
	p.State = deref(state)
	p.County = deref(county)
	p.FuelType = deref(fuelType)
	p.ProjectStatus = deref(status)
	p.ReportURL = deref(reportURL)
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetProject fetches one project by external id within a cluster, or nil.
func (s *SQLiteStore) GetProject(ctx context.Context, clusterID int64, projectID string) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE cluster_id = ? AND project_id = ?`,
		clusterID, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting project %s: %w", projectID, err)
	}
	return p, nil
}

// ListProjects returns all projects in a cluster ordered by external id.
func (s *SQLiteStore) ListProjects(ctx context.Context, clusterID int64) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE cluster_id = ? ORDER BY project_id`,
		clusterID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpgradeRow is one stored upgrade.
type UpgradeRow struct {
	RowID         int64
	RTEPID        string
	TOID          string
	Utility       string
	Title         string
	TotalCost     *float64
	SharedByCount *int64
}

// ListUpgrades returns all upgrades in a cluster ordered by RTEP id.
func (s *SQLiteStore) ListUpgrades(ctx context.Context, clusterID int64) ([]*UpgradeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rtep_id, to_id, COALESCE(utility, ''), COALESCE(title, ''), total_cost, shared_by_count
		 FROM upgrades WHERE cluster_id = ? ORDER BY rtep_id, to_id`,
		clusterID)
	if err != nil {
		return nil, fmt.Errorf("listing upgrades: %w", err)
	}
	defer rows.Close()

	var upgrades []*UpgradeRow
	for rows.Next() {
		u := &UpgradeRow{}
		if err := rows.Scan(&u.RowID, &u.RTEPID, &u.TOID, &u.Utility, &u.Title, &u.TotalCost, &u.SharedByCount); err != nil {
			return nil, fmt.Errorf("scanning upgrade: %w", err)
		}
		upgrades = append(upgrades, u)
	}
	return upgrades, rows.Err()
}

// LinkRow is one stored project-upgrade link.
type LinkRow struct {
	ProjectID     string
	UpgradeID     int64
	LinkType      string
	AllocatedCost float64 // 0 when NULL; TAGGED_NO_COST links carry no cost
}

// ClusterLinks returns every link in a cluster.
func (s *SQLiteStore) ClusterLinks(ctx context.Context, clusterID int64) ([]LinkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, upgrade_id, link_type, COALESCE(allocated_cost, 0)
		 FROM project_upgrades WHERE cluster_id = ?`,
		clusterID)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	var links []LinkRow
	for rows.Next() {
		var l LinkRow
		if err := rows.Scan(&l.ProjectID, &l.UpgradeID, &l.LinkType, &l.AllocatedCost); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// CostInput is the ranking input for one project.
type CostInput struct {
	RowID     int64
	ProjectID string
	CostPerKW *float64
}

// ProjectCostInputs returns the ranking inputs for every project in a
// cluster, including those with undefined cost-per-kW (which the ranking
// pass excludes but the other passes still score).
func (s *SQLiteStore) ProjectCostInputs(ctx context.Context, clusterID int64) ([]CostInput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, cost_per_kw FROM projects WHERE cluster_id = ? ORDER BY project_id`,
		clusterID)
	if err != nil {
		return nil, fmt.Errorf("listing cost inputs: %w", err)
	}
	defer rows.Close()

	var inputs []CostInput
	for rows.Next() {
		var in CostInput
		if err := rows.Scan(&in.RowID, &in.ProjectID, &in.CostPerKW); err != nil {
			return nil, fmt.Errorf("scanning cost input: %w", err)
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// RiskUpdate is the computed score set for one project.
type RiskUpdate struct {
	RowID          int64
	CostRank       *int64   // NULL when cost-per-kW is undefined
	CostPercentile *float64 // NULL when cost-per-kW is undefined
	ScoreCost      *float64 // NULL when cost-per-kW is undefined
	Concentration  float64
	Dependency     float64
	Complexity     float64
	Overall        float64
}

// ApplyRisk lands a full cluster recompute in one transaction: project
// scores, upgrade shared_by_count, and cluster roll-ups commit together or
// roll back together. Readers see either the fully-previous or fully-new
// score set, never a mix.
func (s *SQLiteStore) ApplyRisk(ctx context.Context, clusterID int64, updates []RiskUpdate, sharedBy map[int64]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning risk transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE projects SET
				cost_rank                = ?,
				cost_percentile          = ?,
				risk_score_cost          = ?,
				risk_score_concentration = ?,
				risk_score_dependency    = ?,
				risk_score_complexity    = ?,
				risk_score_overall       = ?
			 WHERE id = ?`,
			u.CostRank, u.CostPercentile, u.ScoreCost,
			u.Concentration, u.Dependency, u.Complexity, u.Overall, u.RowID,
		); err != nil {
			return fmt.Errorf("updating scores for project row %d: %w", u.RowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE upgrades SET shared_by_count = 0 WHERE cluster_id = ?`, clusterID,
	); err != nil {
		return fmt.Errorf("resetting shared_by_count: %w", err)
	}
	for upgradeID, count := range sharedBy {
		if _, err := tx.ExecContext(ctx,
			`UPDATE upgrades SET shared_by_count = ? WHERE id = ?`, count, upgradeID,
		); err != nil {
			return fmt.Errorf("updating shared_by_count for upgrade %d: %w", upgradeID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE clusters SET
			total_projects = (SELECT COUNT(*) FROM projects WHERE cluster_id = clusters.id),
			total_mw       = (SELECT SUM(mw_capacity) FROM projects WHERE cluster_id = clusters.id),
			updated_at     = ?
		 WHERE id = ?`,
		time.Now().UTC(), clusterID,
	); err != nil {
		return fmt.Errorf("updating cluster roll-ups: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing risk recompute: %w", err)
	}
	return nil
}

// ClusterAggregates are the raw figures behind the operator summary.
type ClusterAggregates struct {
	Projects      int
	TotalMW       *float64
	TotalCost     *float64
	AvgCostPerKW  *float64
	AvgRisk       *float64
	OverallScores []float64 // one per project with a computed overall score
}

// AggregateCluster reads the summary figures for one cluster.
func (s *SQLiteStore) AggregateCluster(ctx context.Context, clusterID int64) (*ClusterAggregates, error) {
	agg := &ClusterAggregates{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(mw_capacity), SUM(total_cost), AVG(cost_per_kw), AVG(risk_score_overall)
		 FROM projects WHERE cluster_id = ?`,
		clusterID,
	).Scan(&agg.Projects, &agg.TotalMW, &agg.TotalCost, &agg.AvgCostPerKW, &agg.AvgRisk)
	if err != nil {
		return nil, fmt.Errorf("aggregating cluster %d: %w", clusterID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT risk_score_overall FROM projects
		 WHERE cluster_id = ? AND risk_score_overall IS NOT NULL`,
		clusterID)
	if err != nil {
		return nil, fmt.Errorf("listing overall scores: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scanning overall score: %w", err)
		}
		agg.OverallScores = append(agg.OverallScores, score)
	}
	return agg, rows.Err()
}
