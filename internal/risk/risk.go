// Package risk scores every project in a cluster on four components and a
// weighted overall figure.
//
// Scores are relative to the cluster, not absolute: a project's cost score
// is its percentile among cluster peers, and the network scores are
// normalized against the cluster maximum. Scoring a cluster is a full
// recompute from the stored rows, so it can be re-run after any load and
// always reflects the current data.
package risk

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hurttlocker/queueinsight/internal/config"
	"github.com/hurttlocker/queueinsight/internal/store"
)

// Engine computes and persists risk scores for clusters.
type Engine struct {
	store   *store.SQLiteStore
	weights config.Weights
	log     *zap.Logger
}

// NewEngine returns an engine writing scores to s.
func NewEngine(s *store.SQLiteStore, weights config.Weights, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, weights: weights, log: log}
}

// Summary reports what one cluster recompute touched.
type Summary struct {
	Cluster  string
	Phase    string
	Projects int
	Ranked   int // projects with a defined cost-per-kW
	Upgrades int
}

// ScoreCluster recomputes every score for one cluster and writes the full
// result in a single transaction.
func (e *Engine) ScoreCluster(ctx context.Context, clusterName, phase string) (*Summary, error) {
	cluster, err := e.store.GetCluster(ctx, clusterName, phase)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, fmt.Errorf("cluster %s %s not found", clusterName, phase)
	}

	inputs, err := e.store.ProjectCostInputs(ctx, cluster.ID)
	if err != nil {
		return nil, err
	}
	links, err := e.store.ClusterLinks(ctx, cluster.ID)
	if err != nil {
		return nil, err
	}

	ranks := rankByCost(inputs)
	concentration := concentrationScores(links)
	dependency := dependencyScores(links)
	complexity := complexityScores(links)
	sharedBy := sharedByCounts(links)

	updates := make([]store.RiskUpdate, 0, len(inputs))
	ranked := 0
	for _, in := range inputs {
		u := store.RiskUpdate{
			RowID:         in.RowID,
			Concentration: concentration[in.ProjectID],
			Dependency:    dependency[in.ProjectID],
			Complexity:    complexity[in.ProjectID],
		}
		if r, ok := ranks[in.RowID]; ok {
			ranked++
			rank := r.rank
			pct := r.percentile
			u.CostRank = &rank
			u.CostPercentile = &pct
			u.ScoreCost = &pct
		}
		u.Overall = e.overall(u)
		updates = append(updates, u)
	}

	if err := e.store.ApplyRisk(ctx, cluster.ID, updates, sharedBy); err != nil {
		return nil, err
	}

	e.log.Info("cluster scored",
		zap.String("cluster", clusterName),
		zap.String("phase", phase),
		zap.Int("projects", len(updates)),
		zap.Int("ranked", ranked))

	return &Summary{
		Cluster:  clusterName,
		Phase:    phase,
		Projects: len(updates),
		Ranked:   ranked,
		Upgrades: len(sharedBy),
	}, nil
}

// overall folds the component scores with the configured weights. A missing
// cost score contributes zero rather than making the overall undefined.
func (e *Engine) overall(u store.RiskUpdate) float64 {
	cost := 0.0
	if u.ScoreCost != nil {
		cost = *u.ScoreCost
	}
	return e.weights.Cost*cost +
		e.weights.Concentration*u.Concentration +
		e.weights.Dependency*u.Dependency +
		e.weights.Complexity*u.Complexity
}

type costRank struct {
	rank       int64
	percentile float64
}

// rankByCost ranks projects by cost-per-kW ascending, cheapest first.
// Equal values share a rank and the next value skips past them (1,2,2,4).
// Projects without a defined cost-per-kW are excluded entirely. The
// percentile spreads ranks over [0,100]; a single ranked project sits at 0.
func rankByCost(inputs []store.CostInput) map[int64]costRank {
	type entry struct {
		rowID int64
		cost  float64
	}
	var entries []entry
	for _, in := range inputs {
		if in.CostPerKW == nil || *in.CostPerKW <= 0 {
			continue
		}
		entries = append(entries, entry{rowID: in.RowID, cost: *in.CostPerKW})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].cost < entries[j].cost })

	ranks := make(map[int64]costRank, len(entries))
	n := len(entries)
	for i, en := range entries {
		rank := int64(i + 1)
		if i > 0 && en.cost == entries[i-1].cost {
			rank = ranks[entries[i-1].rowID].rank
		}
		pct := 0.0
		if n > 1 {
			pct = float64(rank-1) / float64(n-1) * 100
		}
		ranks[en.rowID] = costRank{rank: rank, percentile: pct}
	}
	return ranks
}

// concentrationScores measures how much of a project's allocated cost sits
// in its single largest upgrade. One costed link scores 100; an even spread
// over many upgrades scores low. Links without allocated cost don't count.
func concentrationScores(links []store.LinkRow) map[string]float64 {
	sums := make(map[string]float64)
	maxes := make(map[string]float64)
	for _, l := range links {
		if l.LinkType != store.LinkCostAllocated || l.AllocatedCost <= 0 {
			continue
		}
		sums[l.ProjectID] += l.AllocatedCost
		if l.AllocatedCost > maxes[l.ProjectID] {
			maxes[l.ProjectID] = l.AllocatedCost
		}
	}

	scores := make(map[string]float64, len(sums))
	for id, sum := range sums {
		if sum > 0 {
			scores[id] = maxes[id] / sum * 100
		}
	}
	return scores
}

// dependencyScores counts, per project, the distinct other projects sharing
// a cost-allocated upgrade with it, normalized against the cluster maximum.
// Tagged-only links don't create codependency; shared money does.
func dependencyScores(links []store.LinkRow) map[string]float64 {
	byUpgrade := make(map[int64][]string)
	for _, l := range links {
		if l.LinkType != store.LinkCostAllocated {
			continue
		}
		byUpgrade[l.UpgradeID] = append(byUpgrade[l.UpgradeID], l.ProjectID)
	}

	coProjects := make(map[string]map[string]bool)
	for _, projects := range byUpgrade {
		for _, p := range projects {
			for _, q := range projects {
				if p == q {
					continue
				}
				if coProjects[p] == nil {
					coProjects[p] = make(map[string]bool)
				}
				coProjects[p][q] = true
			}
		}
	}

	counts := make(map[string]float64)
	max := 0.0
	for _, l := range links {
		c := float64(len(coProjects[l.ProjectID]))
		counts[l.ProjectID] = c
		if c > max {
			max = c
		}
	}
	return normalize(counts, max)
}

// complexityScores counts each project's total upgrade links, normalized
// against the cluster maximum. More moving parts, more ways to slip.
func complexityScores(links []store.LinkRow) map[string]float64 {
	counts := make(map[string]float64)
	max := 0.0
	for _, l := range links {
		counts[l.ProjectID]++
		if counts[l.ProjectID] > max {
			max = counts[l.ProjectID]
		}
	}
	return normalize(counts, max)
}

func normalize(counts map[string]float64, max float64) map[string]float64 {
	scores := make(map[string]float64, len(counts))
	for id, c := range counts {
		if max > 0 {
			scores[id] = c / max * 100
		} else {
			scores[id] = 0
		}
	}
	return scores
}

// sharedByCounts tallies the distinct projects paying into each upgrade.
func sharedByCounts(links []store.LinkRow) map[int64]int {
	seen := make(map[int64]map[string]bool)
	for _, l := range links {
		if l.LinkType != store.LinkCostAllocated {
			continue
		}
		if seen[l.UpgradeID] == nil {
			seen[l.UpgradeID] = make(map[string]bool)
		}
		seen[l.UpgradeID][l.ProjectID] = true
	}
	counts := make(map[int64]int, len(seen))
	for id, projects := range seen {
		counts[id] = len(projects)
	}
	return counts
}
