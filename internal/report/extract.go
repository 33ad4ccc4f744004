package report

import (
	"strings"

	"github.com/hurttlocker/queueinsight/internal/htmltable"
	"github.com/hurttlocker/queueinsight/internal/parse"
)

// findCol returns the index of the first header satisfying match, or -1.
func findCol(t htmltable.Table, match func(lower string) bool) int {
	for i, h := range t.Headers {
		if match(strings.ToLower(h)) {
			return i
		}
	}
	return -1
}

// extractCostSummary scans each row's description cell against the category
// keyword sets. Summary tables have one row per category; when a later row
// matches the same category it overwrites the earlier value.
func extractCostSummary(t htmltable.Table, r *ScrapedReport) {
	costCol := t.Col("Cost Allocated")
	if costCol < 0 {
		// Positionally classified summaries sometimes lack the labeled
		// column; fall back to the last column.
		if len(t.Headers) < 2 {
			r.AddError("cost summary: Cost Allocated column not found")
			return
		}
		costCol = len(t.Headers) - 1
	}

	for i := range t.Rows {
		desc := t.Cell(i, 0)
		cost := parse.Currency(t.Cell(i, costCol))

		switch {
		case strings.Contains(desc, "Total") && !strings.Contains(desc, "Grand"):
			r.CostSummary.TotalCost = cost
		case strings.Contains(desc, "Transmission Owner Interconnection") || strings.Contains(desc, "TOIF"):
			r.CostSummary.TOIFCost = cost
		case strings.Contains(desc, "Stand Alone"):
			r.CostSummary.StandAloneCost = cost
		case strings.Contains(desc, "Network Upgrade") && !strings.Contains(desc, "System"):
			r.CostSummary.NetworkUpgradeCost = cost
		case strings.Contains(desc, "Steady State") || strings.Contains(desc, "System Reliability"):
			r.CostSummary.SystemReliabilityCost = cost
		case strings.Contains(desc, "Subject to"):
			r.CostSummary.CostSubjectToReadiness = cost
		}
	}
}

// extractReadiness reads the deposit columns from the first data row only.
func extractReadiness(t htmltable.Table, r *ScrapedReport) {
	if len(t.Rows) == 0 {
		return
	}
	if col := t.Col("RD1", "Received"); col >= 0 {
		r.Readiness.RD1Amount = parse.Currency(t.Cell(0, col))
	}
	if col := t.Col("RD2", "due"); col >= 0 {
		r.Readiness.RD2Amount = parse.Currency(t.Cell(0, col))
	}
}

// extractUpgradeSummary emits one Upgrade per meaningful row. The RTEP cell
// is a composite reference (see parse.SplitUpgradeRef); rows lacking both an
// RTEP id and a title are discarded as noise, as is the Grand Total row.
func extractUpgradeSummary(t htmltable.Table, r *ScrapedReport) {
	utilityCol := findCol(t, func(h string) bool { return strings.TrimSpace(h) == "to" })
	rtepCol := t.Col("rtep")
	titleCol := t.Col("title", "description")
	allocCol := findCol(t, func(h string) bool {
		return strings.Contains(h, "allocated") && strings.Contains(h, "cost")
	})
	totalCol := findCol(t, func(h string) bool {
		return strings.Contains(h, "total") && strings.Contains(h, "cost")
	})
	if rtepCol < 0 {
		r.AddError("upgrade summary: RTEP ID column not found")
		return
	}

	for i := range t.Rows {
		if strings.Contains(t.Cell(i, 0), "Grand Total") {
			continue
		}

		rtepID, toID := parse.SplitUpgradeRef(t.Cell(i, rtepCol))
		u := Upgrade{
			RTEPID:        rtepID,
			TOID:          toID,
			Utility:       t.Cell(i, utilityCol),
			Title:         t.Cell(i, titleCol),
			AllocatedCost: parse.Currency(t.Cell(i, allocCol)),
			TotalCost:     parse.Currency(t.Cell(i, totalCol)),
		}
		if u.RTEPID == "" && u.Title == "" {
			continue
		}
		r.Upgrades = append(r.Upgrades, u)
	}
}

// extractProjectAllocation emits allocation rows for projects bearing a
// strictly positive share. Zero-cost rows are dropped here; those projects
// still surface as TAGGED_NO_COST links at load time from the
// upgrade-summary side.
func extractProjectAllocation(t htmltable.Table, r *ScrapedReport) {
	projectCol := t.Col("Project")
	mwCol := t.Col("MW Impact")
	pctCol := t.Col("Percent")
	allocCol := findCol(t, func(h string) bool {
		return strings.Contains(h, "allocated") && strings.Contains(h, "cost")
	})
	if projectCol < 0 {
		r.AddError("project allocation: Project column not found")
		return
	}

	for i := range t.Rows {
		a := ProjectAllocation{
			ProjectID:         t.Cell(i, projectCol),
			MWImpact:          parse.MW(t.Cell(i, mwCol)),
			PercentAllocation: parse.Percentage(t.Cell(i, pctCol)),
			AllocatedCost:     parse.Currency(t.Cell(i, allocCol)),
		}
		if a.ProjectID == "" || a.AllocatedCost <= 0 {
			continue
		}
		r.Allocations = append(r.Allocations, a)
	}
}

// extractFacilityOverloads emits one record per overloaded facility. Rows
// with no facility name are discarded.
func extractFacilityOverloads(t htmltable.Table, r *ScrapedReport) {
	facilityCol := t.Col("Facility")
	nameCol := findCol(t, func(h string) bool {
		return strings.Contains(h, "contingency") && strings.Contains(h, "name")
	})
	typeCol := findCol(t, func(h string) bool {
		return strings.Contains(h, "contingency") && strings.Contains(h, "type")
	})
	loadingCol := t.Col("Loading")
	ratingCol := t.Col("Rating")
	mitigateCol := t.Col("Mitigate")
	if facilityCol < 0 {
		r.AddError("facility overload: Facility column not found")
		return
	}

	for i := range t.Rows {
		o := FacilityOverload{
			FacilityName:    t.Cell(i, facilityCol),
			ContingencyName: t.Cell(i, nameCol),
			ContingencyType: t.Cell(i, typeCol),
			LoadingPct:      parse.Loading(t.Cell(i, loadingCol)),
			RatingMVA:       parse.Number(t.Cell(i, ratingCol)),
			MVAToMitigate:   parse.Number(t.Cell(i, mitigateCol)),
		}
		if o.FacilityName == "" {
			continue
		}
		r.Overloads = append(r.Overloads, o)
	}
}

// extractMWContributions derives a project id from each generator bus name
// and keeps only rows that look like project buses: the id retains a hyphen
// after the GEN suffix strip (pure transmission nodes don't) and the MW
// contribution is strictly positive.
func extractMWContributions(t htmltable.Table, r *ScrapedReport) {
	busCol := t.Col("Bus Name")
	typeCol := t.Col("Type")
	mwCol := t.Col("MW Contribution")
	if busCol < 0 || mwCol < 0 {
		r.AddError("generator contribution: Bus Name / MW Contribution column not found")
		return
	}

	for i := range t.Rows {
		bus := t.Cell(i, busCol)
		projectID := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(bus, "_GEN", ""), " GEN", ""))

		c := MWContribution{
			ProjectID:        projectID,
			ContributionType: t.Cell(i, typeCol),
			MWContribution:   parse.Number(t.Cell(i, mwCol)),
		}
		if !strings.Contains(c.ProjectID, "-") || c.MWContribution <= 0 {
			continue
		}
		r.MWContribs = append(r.MWContribs, c)
	}
}
