// Package observe provides queue observability for QueueInsight.
//
// It answers the operator's question after a load-and-score run: "what does
// this cluster look like?" — project counts, aggregate capacity and cost,
// and how the overall risk scores spread across the configured bands.
package observe

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/queueinsight/internal/config"
	"github.com/hurttlocker/queueinsight/internal/store"
)

// RiskDistribution buckets overall scores by the configured thresholds.
// A cluster loaded but never scored has all projects in Unscored.
type RiskDistribution struct {
	Low      int // below the low threshold
	Medium   int // low up to the medium threshold
	High     int // medium up to the high threshold
	Critical int // at or above the high threshold
	Unscored int
}

// ClusterSummary is the operator-facing view of one cluster.
type ClusterSummary struct {
	Cluster string
	Phase   string

	Projects     int
	TotalMW      float64
	TotalCost    float64
	AvgCostPerKW float64
	AvgRisk      float64
	HasRisk      bool

	Distribution RiskDistribution
}

// Summarize computes the summary for one cluster.
func Summarize(ctx context.Context, s *store.SQLiteStore, th config.Thresholds, clusterName, phase string) (*ClusterSummary, error) {
	cluster, err := s.GetCluster(ctx, clusterName, phase)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, fmt.Errorf("cluster %s %s not found", clusterName, phase)
	}

	agg, err := s.AggregateCluster(ctx, cluster.ID)
	if err != nil {
		return nil, err
	}

	summary := &ClusterSummary{
		Cluster:  clusterName,
		Phase:    phase,
		Projects: agg.Projects,
	}
	if agg.TotalMW != nil {
		summary.TotalMW = *agg.TotalMW
	}
	if agg.TotalCost != nil {
		summary.TotalCost = *agg.TotalCost
	}
	if agg.AvgCostPerKW != nil {
		summary.AvgCostPerKW = *agg.AvgCostPerKW
	}
	if agg.AvgRisk != nil {
		summary.AvgRisk = *agg.AvgRisk
		summary.HasRisk = true
	}

	summary.Distribution = distribute(agg.OverallScores, th)
	summary.Distribution.Unscored = agg.Projects - len(agg.OverallScores)
	return summary, nil
}

func distribute(scores []float64, th config.Thresholds) RiskDistribution {
	var d RiskDistribution
	for _, score := range scores {
		switch {
		case score < th.Low:
			d.Low++
		case score < th.Medium:
			d.Medium++
		case score < th.High:
			d.High++
		default:
			d.Critical++
		}
	}
	return d
}

// Format renders a summary as CLI text.
func Format(s *ClusterSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cluster %s (%s)\n", s.Cluster, s.Phase)
	fmt.Fprintf(&b, "  Projects:      %d\n", s.Projects)
	fmt.Fprintf(&b, "  Total MW:      %.1f\n", s.TotalMW)
	fmt.Fprintf(&b, "  Total cost:    $%.0f\n", s.TotalCost)
	fmt.Fprintf(&b, "  Avg $/kW:      %.2f\n", s.AvgCostPerKW)
	if s.HasRisk {
		fmt.Fprintf(&b, "  Avg risk:      %.1f\n", s.AvgRisk)
	} else {
		fmt.Fprintf(&b, "  Avg risk:      (not scored)\n")
	}
	d := s.Distribution
	fmt.Fprintf(&b, "  Risk bands:    low %d / medium %d / high %d / critical %d",
		d.Low, d.Medium, d.High, d.Critical)
	if d.Unscored > 0 {
		fmt.Fprintf(&b, " / unscored %d", d.Unscored)
	}
	b.WriteString("\n")
	return b.String()
}
