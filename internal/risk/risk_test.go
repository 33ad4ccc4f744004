package risk

import (
	"context"
	"math"
	"testing"

	"github.com/hurttlocker/queueinsight/internal/config"
	"github.com/hurttlocker/queueinsight/internal/report"
	"github.com/hurttlocker/queueinsight/internal/store"
)

func fp(v float64) *float64 { return &v }

func TestRankByCostDistinct(t *testing.T) {
	inputs := []store.CostInput{
		{RowID: 1, ProjectID: "A", CostPerKW: fp(300)},
		{RowID: 2, ProjectID: "B", CostPerKW: fp(100)},
		{RowID: 3, ProjectID: "C", CostPerKW: fp(200)},
	}
	ranks := rankByCost(inputs)

	// Cheapest ranks first.
	if ranks[2].rank != 1 || ranks[3].rank != 2 || ranks[1].rank != 3 {
		t.Errorf("ranks = %+v, want B=1 C=2 A=3", ranks)
	}
	if ranks[2].percentile != 0 || ranks[3].percentile != 50 || ranks[1].percentile != 100 {
		t.Errorf("percentiles = %+v, want 0/50/100", ranks)
	}
}

func TestRankByCostTies(t *testing.T) {
	inputs := []store.CostInput{
		{RowID: 1, ProjectID: "A", CostPerKW: fp(100)},
		{RowID: 2, ProjectID: "B", CostPerKW: fp(100)},
		{RowID: 3, ProjectID: "C", CostPerKW: fp(200)},
	}
	ranks := rankByCost(inputs)

	if ranks[1].rank != 1 || ranks[2].rank != 1 {
		t.Errorf("tied projects should share rank 1, got %+v", ranks)
	}
	if ranks[3].rank != 3 {
		t.Errorf("rank after a two-way tie should be 3, got %d", ranks[3].rank)
	}
	if ranks[1].percentile != ranks[2].percentile {
		t.Error("tied projects should share a percentile")
	}
}

func TestRankByCostSingleProject(t *testing.T) {
	ranks := rankByCost([]store.CostInput{{RowID: 1, ProjectID: "A", CostPerKW: fp(100)}})
	if ranks[1].rank != 1 || ranks[1].percentile != 0 {
		t.Errorf("single project should rank 1 at percentile 0, got %+v", ranks[1])
	}
}

func TestRankByCostExcludesUndefined(t *testing.T) {
	inputs := []store.CostInput{
		{RowID: 1, ProjectID: "A", CostPerKW: fp(100)},
		{RowID: 2, ProjectID: "B"},              // no capacity, no cost-per-kW
		{RowID: 3, ProjectID: "C", CostPerKW: fp(0)}, // zero cost never ranks as cheapest
	}
	ranks := rankByCost(inputs)
	if _, ok := ranks[2]; ok {
		t.Error("project without cost-per-kW should not be ranked")
	}
	if _, ok := ranks[3]; ok {
		t.Error("project with zero cost-per-kW should not be ranked")
	}
	if len(ranks) != 1 {
		t.Errorf("expected 1 ranked project, got %d", len(ranks))
	}
}

func TestConcentrationScores(t *testing.T) {
	links := []store.LinkRow{
		// A: one costed link, fully concentrated.
		{ProjectID: "A", UpgradeID: 1, LinkType: store.LinkCostAllocated, AllocatedCost: 4_000_000},
		// B: even split over two upgrades.
		{ProjectID: "B", UpgradeID: 1, LinkType: store.LinkCostAllocated, AllocatedCost: 1_000_000},
		{ProjectID: "B", UpgradeID: 2, LinkType: store.LinkCostAllocated, AllocatedCost: 1_000_000},
		// C: tagged only, never counted.
		{ProjectID: "C", UpgradeID: 2, LinkType: store.LinkTaggedNoCost},
	}
	scores := concentrationScores(links)

	if scores["A"] != 100 {
		t.Errorf("A = %v, want 100 for a single costed link", scores["A"])
	}
	if scores["B"] != 50 {
		t.Errorf("B = %v, want 50 for an even two-way split", scores["B"])
	}
	if _, ok := scores["C"]; ok {
		t.Error("tagged-only project should have no concentration score")
	}
}

func TestDependencyScores(t *testing.T) {
	links := []store.LinkRow{
		// A and B share upgrade 1; C is alone on upgrade 2.
		{ProjectID: "A", UpgradeID: 1, LinkType: store.LinkCostAllocated, AllocatedCost: 1},
		{ProjectID: "B", UpgradeID: 1, LinkType: store.LinkCostAllocated, AllocatedCost: 1},
		{ProjectID: "C", UpgradeID: 2, LinkType: store.LinkCostAllocated, AllocatedCost: 1},
		// D is tagged onto upgrade 1 without cost; tagging alone creates no
		// codependency for anyone.
		{ProjectID: "D", UpgradeID: 1, LinkType: store.LinkTaggedNoCost},
	}
	scores := dependencyScores(links)

	if scores["A"] != 100 || scores["B"] != 100 {
		t.Errorf("shared projects = %v/%v, want 100/100", scores["A"], scores["B"])
	}
	if scores["C"] != 0 {
		t.Errorf("isolated project = %v, want 0", scores["C"])
	}
	if scores["D"] != 0 {
		t.Errorf("tagged-only project = %v, want 0", scores["D"])
	}
}

func TestComplexityScores(t *testing.T) {
	links := []store.LinkRow{
		{ProjectID: "A", UpgradeID: 1},
		{ProjectID: "A", UpgradeID: 2},
		{ProjectID: "B", UpgradeID: 1},
	}
	scores := complexityScores(links)

	if scores["A"] != 100 {
		t.Errorf("A = %v, want 100 at the cluster max", scores["A"])
	}
	if scores["B"] != 50 {
		t.Errorf("B = %v, want 50 at half the max", scores["B"])
	}
}

func TestSharedByCounts(t *testing.T) {
	links := []store.LinkRow{
		{ProjectID: "A", UpgradeID: 1, LinkType: store.LinkCostAllocated, AllocatedCost: 1},
		{ProjectID: "B", UpgradeID: 1, LinkType: store.LinkCostAllocated, AllocatedCost: 1},
		{ProjectID: "A", UpgradeID: 1, LinkType: store.LinkCostAllocated, AllocatedCost: 1}, // duplicate pair, still one project
		{ProjectID: "C", UpgradeID: 1, LinkType: store.LinkTaggedNoCost},                    // tagged, not paying
		{ProjectID: "C", UpgradeID: 2, LinkType: store.LinkCostAllocated, AllocatedCost: 1},
	}
	counts := sharedByCounts(links)
	if counts[1] != 2 {
		t.Errorf("upgrade 1 shared by %d, want 2", counts[1])
	}
	if counts[2] != 1 {
		t.Errorf("upgrade 2 shared by %d, want 1", counts[2])
	}
}

func TestOverallWeighting(t *testing.T) {
	e := NewEngine(nil, config.Weights{Cost: 0.35, Concentration: 0.25, Dependency: 0.25, Complexity: 0.15}, nil)

	u := store.RiskUpdate{
		ScoreCost:     fp(100),
		Concentration: 100,
		Dependency:    100,
		Complexity:    100,
	}
	if got := e.overall(u); math.Abs(got-100) > 1e-9 {
		t.Errorf("overall at max components = %v, want 100", got)
	}

	// A missing cost score contributes zero.
	u.ScoreCost = nil
	if got := e.overall(u); math.Abs(got-65) > 1e-9 {
		t.Errorf("overall without cost score = %v, want 65", got)
	}
}

func newScoredCluster(t *testing.T) (*store.SQLiteStore, *store.Cluster) {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	mkReport := func(id string, totalCost, capacity float64, upgrades []report.Upgrade) *report.ScrapedReport {
		return &report.ScrapedReport{
			ProjectID:   id,
			Cluster:     "TC1",
			Phase:       "Phase 1",
			ReportURL:   "https://example.com/" + id + ".htm",
			CostSummary: report.CostSummary{TotalCost: totalCost},
			Upgrades:    upgrades,
			Meta:        report.Meta{MWCapacity: capacity},
		}
	}

	shared := report.Upgrade{RTEPID: "RTEP-001", Title: "Shared rebuild", AllocatedCost: 2_000_000}
	reports := []*report.ScrapedReport{
		mkReport("AG1-001", 10_000_000, 100, []report.Upgrade{shared}),
		mkReport("AG1-002", 40_000_000, 100, []report.Upgrade{
			shared,
			{RTEPID: "RTEP-002", Title: "Transformer addition", AllocatedCost: 6_000_000},
		}),
		mkReport("AG1-003", 5_000_000, 0, nil), // no capacity: excluded from ranking
	}
	if _, err := store.NewLoader(s, nil).LoadBatch(ctx, reports); err != nil {
		t.Fatalf("LoadBatch failed: %v", err)
	}

	engine := NewEngine(s, config.Default().Weights, nil)
	summary, err := engine.ScoreCluster(ctx, "TC1", "Phase 1")
	if err != nil {
		t.Fatalf("ScoreCluster failed: %v", err)
	}
	if summary.Projects != 3 || summary.Ranked != 2 {
		t.Fatalf("summary = %+v, want 3 projects 2 ranked", summary)
	}

	c, err := s.GetCluster(ctx, "TC1", "Phase 1")
	if err != nil || c == nil {
		t.Fatalf("cluster missing: %v", err)
	}
	return s, c
}

func TestScoreClusterEndToEnd(t *testing.T) {
	s, c := newScoredCluster(t)
	ctx := context.Background()

	cheap, _ := s.GetProject(ctx, c.ID, "AG1-001")
	dear, _ := s.GetProject(ctx, c.ID, "AG1-002")
	unranked, _ := s.GetProject(ctx, c.ID, "AG1-003")

	if cheap.CostRank == nil || *cheap.CostRank != 1 {
		t.Errorf("cheap project rank = %v, want 1", cheap.CostRank)
	}
	if dear.CostRank == nil || *dear.CostRank != 2 {
		t.Errorf("dear project rank = %v, want 2", dear.CostRank)
	}
	if cheap.CostPercentile == nil || *cheap.CostPercentile != 0 {
		t.Errorf("cheap percentile = %v, want 0", cheap.CostPercentile)
	}
	if dear.CostPercentile == nil || *dear.CostPercentile != 100 {
		t.Errorf("dear percentile = %v, want 100", dear.CostPercentile)
	}
	if unranked.CostRank != nil || unranked.RiskCost != nil {
		t.Error("unranked project should carry NULL rank and cost score")
	}

	// Every stored score stays within [0,100].
	for _, p := range []*store.Project{cheap, dear, unranked} {
		if p.RiskOverall == nil {
			t.Fatalf("project %s has no overall score", p.ProjectID)
		}
		if *p.RiskOverall < 0 || *p.RiskOverall > 100 {
			t.Errorf("project %s overall = %v, out of [0,100]", p.ProjectID, *p.RiskOverall)
		}
	}

	// One upgrade shared by two projects, one by a single project.
	ups, err := s.ListUpgrades(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListUpgrades failed: %v", err)
	}
	byRTEP := map[string]int64{}
	for _, u := range ups {
		if u.SharedByCount == nil {
			t.Fatalf("upgrade %s has no shared_by_count", u.RTEPID)
		}
		byRTEP[u.RTEPID] = *u.SharedByCount
	}
	if byRTEP["RTEP-001"] != 2 || byRTEP["RTEP-002"] != 1 {
		t.Errorf("shared_by_count = %v, want RTEP-001=2 RTEP-002=1", byRTEP)
	}
}

func TestScoreClusterRollups(t *testing.T) {
	s, c := newScoredCluster(t)

	updated, err := s.GetCluster(context.Background(), "TC1", "Phase 1")
	if err != nil || updated == nil {
		t.Fatalf("GetCluster failed: %v", err)
	}
	if updated.TotalProjects != 3 {
		t.Errorf("total_projects = %d, want 3", updated.TotalProjects)
	}
	if updated.TotalMW == nil || *updated.TotalMW != 200 {
		t.Errorf("total_mw = %v, want 200", updated.TotalMW)
	}
	_ = c
}

func TestScoreClusterMissing(t *testing.T) {
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	defer s.Close()

	engine := NewEngine(s, config.Default().Weights, nil)
	if _, err := engine.ScoreCluster(context.Background(), "missing", "Phase 1"); err == nil {
		t.Error("expected error for unknown cluster")
	}
}

func TestScoreClusterIdempotent(t *testing.T) {
	s, c := newScoredCluster(t)
	ctx := context.Background()

	before, _ := s.GetProject(ctx, c.ID, "AG1-002")

	engine := NewEngine(s, config.Default().Weights, nil)
	if _, err := engine.ScoreCluster(ctx, "TC1", "Phase 1"); err != nil {
		t.Fatalf("second ScoreCluster failed: %v", err)
	}

	after, _ := s.GetProject(ctx, c.ID, "AG1-002")
	if *before.RiskOverall != *after.RiskOverall {
		t.Errorf("overall changed on recompute: %v -> %v", *before.RiskOverall, *after.RiskOverall)
	}
	if *before.CostRank != *after.CostRank {
		t.Errorf("rank changed on recompute: %v -> %v", *before.CostRank, *after.CostRank)
	}
}
