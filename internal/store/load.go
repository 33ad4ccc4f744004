package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/queueinsight/internal/report"
)

// LoadResult summarizes one batch load. Per-project failures are absorbed
// here rather than aborting the batch; the counts are the primary signal
// surfaced to the operator.
type LoadResult struct {
	Loaded   int
	Failed   int
	Upgrades int
	Links    int
	Errors   []LoadError
}

// LoadError ties a load failure to the project whose changes were rolled
// back.
type LoadError struct {
	ProjectID string
	Err       error
}

// Add merges another result into this one.
func (r *LoadResult) Add(other *LoadResult) {
	r.Loaded += other.Loaded
	r.Failed += other.Failed
	r.Upgrades += other.Upgrades
	r.Links += other.Links
	r.Errors = append(r.Errors, other.Errors...)
}

// Loader merges batches of scraped reports into the relational model.
// Writes are serialized per cluster: the max/count reconciliations in the
// upgrade upserts depend on a consistent snapshot, so two loaders targeting
// the same cluster must not interleave.
type Loader struct {
	store *SQLiteStore
	log   *zap.Logger

	mu           sync.Mutex
	clusterLocks map[string]*sync.Mutex
}

// NewLoader returns a loader writing to s.
func NewLoader(s *SQLiteStore, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		store:        s,
		log:          log,
		clusterLocks: make(map[string]*sync.Mutex),
	}
}

func (l *Loader) lockCluster(name, phase string) func() {
	key := name + "/" + phase
	l.mu.Lock()
	lock, ok := l.clusterLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.clusterLocks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// LoadBatch merges a batch of scraped reports. Reports may span clusters;
// each cluster's writes happen under that cluster's lock. A failure loading
// one project rolls back only that project and the batch continues.
// Re-running the same batch produces the same end state.
func (l *Loader) LoadBatch(ctx context.Context, reports []*report.ScrapedReport) (*LoadResult, error) {
	groups := make(map[string][]*report.ScrapedReport)
	var order []string
	for _, r := range reports {
		key := r.Cluster + "/" + r.Phase
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	total := &LoadResult{}
	for _, key := range order {
		group := groups[key]
		result, err := l.loadClusterGroup(ctx, group)
		if err != nil {
			return total, err
		}
		total.Add(result)
	}

	l.log.Info("batch load complete",
		zap.Int("loaded", total.Loaded),
		zap.Int("failed", total.Failed),
		zap.Int("upgrades", total.Upgrades),
		zap.Int("links", total.Links))
	return total, nil
}

func (l *Loader) loadClusterGroup(ctx context.Context, group []*report.ScrapedReport) (*LoadResult, error) {
	first := group[0]
	unlock := l.lockCluster(first.Cluster, first.Phase)
	defer unlock()

	cluster, err := l.store.EnsureCluster(ctx, first.Cluster, first.Phase)
	if err != nil {
		return &LoadResult{}, err
	}

	result := &LoadResult{}
	for _, r := range group {
		upgrades, links, err := l.loadReport(ctx, cluster.ID, r)
		if err != nil {
			l.log.Warn("project load failed",
				zap.String("project", r.ProjectID),
				zap.Error(err))
			result.Failed++
			result.Errors = append(result.Errors, LoadError{ProjectID: r.ProjectID, Err: err})
			continue
		}
		result.Loaded++
		result.Upgrades += upgrades
		result.Links += links
	}
	return result, nil
}

// loadReport applies one report in a single transaction: the project row,
// its upgrades, and its links land together or not at all.
func (l *Loader) loadReport(ctx context.Context, clusterID int64, r *report.ScrapedReport) (upgrades, links int, err error) {
	if r.ProjectID == "" {
		return 0, 0, fmt.Errorf("report has no project id")
	}

	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = upsertProject(ctx, tx, clusterID, r); err != nil {
		return 0, 0, err
	}

	for _, u := range r.Upgrades {
		upgradeID, uerr := upsertUpgrade(ctx, tx, clusterID, u)
		if uerr != nil {
			err = uerr
			return 0, 0, err
		}
		upgrades++

		if lerr := upsertLink(ctx, tx, clusterID, r.ProjectID, upgradeID, u.AllocatedCost); lerr != nil {
			err = lerr
			return 0, 0, err
		}
		links++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing project %s: %w", r.ProjectID, err)
	}
	return upgrades, links, nil
}

func upsertProject(ctx context.Context, tx *sql.Tx, clusterID int64, r *report.ScrapedReport) error {
	cost := r.CostSummary
	meta := r.Meta

	// Cost per kW is derived, never scraped. Undefined (NULL) when
	// capacity is zero or unknown — never divide by zero.
	var costPerKW *float64
	if meta.MWCapacity > 0 {
		v := cost.TotalCost / (meta.MWCapacity * 1000)
		costPerKW = &v
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO projects (
			project_id, cluster_id, utility, developer, state, county,
			fuel_type, mw_capacity, mw_energy, project_status,
			total_cost, cost_per_kw, toif_cost, stand_alone_cost,
			network_upgrade_cost, system_reliability_cost,
			rd1_amount, rd2_amount, report_url, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, cluster_id) DO UPDATE SET
			utility                 = excluded.utility,
			developer               = excluded.developer,
			state                   = excluded.state,
			county                  = excluded.county,
			fuel_type               = excluded.fuel_type,
			mw_capacity             = excluded.mw_capacity,
			mw_energy               = excluded.mw_energy,
			project_status          = excluded.project_status,
			total_cost              = excluded.total_cost,
			cost_per_kw             = excluded.cost_per_kw,
			toif_cost               = excluded.toif_cost,
			stand_alone_cost        = excluded.stand_alone_cost,
			network_upgrade_cost    = excluded.network_upgrade_cost,
			system_reliability_cost = excluded.system_reliability_cost,
			rd1_amount              = excluded.rd1_amount,
			rd2_amount              = excluded.rd2_amount,
			report_url              = excluded.report_url,
			scraped_at              = excluded.scraped_at`,
		r.ProjectID, clusterID, meta.Utility, meta.Developer, meta.State, meta.County,
		meta.FuelType, nullIfZero(meta.MWCapacity), nullIfZero(meta.MWEnergy), meta.Status,
		nullIfZero(cost.TotalCost), costPerKW, nullIfZero(cost.TOIFCost), nullIfZero(cost.StandAloneCost),
		nullIfZero(cost.NetworkUpgradeCost), nullIfZero(cost.SystemReliabilityCost),
		nullIfZero(r.Readiness.RD1Amount), nullIfZero(r.Readiness.RD2Amount),
		r.ReportURL, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting project %s: %w", r.ProjectID, err)
	}
	return nil
}

// upsertUpgrade reconciles total_cost max-wins: reports show partial cost
// figures before a later report shows the full one, so the stored figure
// never decreases, and a NULL never replaces a number.
func upsertUpgrade(ctx context.Context, tx *sql.Tx, clusterID int64, u report.Upgrade) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO upgrades (cluster_id, rtep_id, to_id, utility, title, total_cost)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cluster_id, rtep_id, to_id) DO UPDATE SET
			utility    = COALESCE(NULLIF(excluded.utility, ''), upgrades.utility),
			title      = COALESCE(NULLIF(excluded.title, ''), upgrades.title),
			total_cost = CASE
				WHEN excluded.total_cost IS NULL THEN upgrades.total_cost
				WHEN upgrades.total_cost IS NULL THEN excluded.total_cost
				ELSE MAX(excluded.total_cost, upgrades.total_cost)
			END
		 RETURNING id`,
		clusterID, u.RTEPID, u.TOID, u.Utility, u.Title, nullIfZero(u.TotalCost),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting upgrade %s/%s: %w", u.RTEPID, u.TOID, err)
	}
	return id, nil
}

// upsertLink derives the link type at load time from the allocated-cost
// sign, so re-classification never requires re-scraping.
func upsertLink(ctx context.Context, tx *sql.Tx, clusterID int64, projectID string, upgradeID int64, allocatedCost float64) error {
	linkType := LinkTaggedNoCost
	if allocatedCost > 0 {
		linkType = LinkCostAllocated
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO project_upgrades (project_id, upgrade_id, cluster_id, link_type, allocated_cost)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, upgrade_id) DO UPDATE SET
			link_type      = excluded.link_type,
			allocated_cost = excluded.allocated_cost`,
		projectID, upgradeID, clusterID, linkType, nullIfZero(allocatedCost),
	)
	if err != nil {
		return fmt.Errorf("upserting link %s -> %d: %w", projectID, upgradeID, err)
	}
	return nil
}

// nullIfZero maps the extractors' 0-means-absent convention onto SQL NULL.
func nullIfZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
