package report

import (
	"github.com/hurttlocker/queueinsight/internal/htmltable"
)

// Key identifies one report document within a batch.
type Key struct {
	ProjectID string
	Cluster   string
	Phase     string
	ReportURL string
}

// Assemble classifies every table in one document and dispatches each to
// its extractor, accumulating all emitted records into a single aggregate.
// Extractor failures land in the aggregate's error list; nothing here
// aborts the rest of the document.
//
// Positional fallback: financial summary tables occasionally carry no
// descriptive headers, so when header classification of the first table is
// inconclusive it is treated as the cost summary, and likewise the second
// as the readiness table. This is a heuristic of last resort — any header
// match takes precedence.
func Assemble(tables []htmltable.Table, key Key, meta Meta) *ScrapedReport {
	r := &ScrapedReport{
		ProjectID: key.ProjectID,
		Cluster:   key.Cluster,
		Phase:     key.Phase,
		ReportURL: key.ReportURL,
		Meta:      meta,
	}

	// Facility overload tables repeat as continuations later in the
	// document; only the first is processed.
	seenOverloads := false

	for _, t := range tables {
		role := Classify(t)

		if role == RoleUnknown {
			switch t.Index {
			case 0:
				role = RoleCostSummary
			case 1:
				role = RoleReadiness
			default:
				continue
			}
		}

		switch role {
		case RoleCostSummary:
			extractCostSummary(t, r)
		case RoleReadiness:
			extractReadiness(t, r)
		case RoleUpgradeSummary:
			extractUpgradeSummary(t, r)
		case RoleProjectAllocation:
			extractProjectAllocation(t, r)
		case RoleFacilityOverload:
			if seenOverloads {
				continue
			}
			seenOverloads = true
			extractFacilityOverloads(t, r)
		case RoleGeneratorContribution:
			extractMWContributions(t, r)
		}
	}

	return r
}
