package report

import (
	"testing"

	"github.com/hurttlocker/queueinsight/internal/htmltable"
)

func TestExtractCostSummary(t *testing.T) {
	tab := htmltable.Table{
		Headers: []string{"Description", "Cost Allocated to Project"},
		Rows: [][]string{
			{"Total Costs", "$10,000,000"},
			{"Transmission Owner Interconnection Facilities", "$2,000,000"},
			{"Stand Alone Network Upgrades", "$500,000"},
			{"Network Upgrade Costs", "$6,000,000"},
			{"Steady State / System Reliability", "$1,500,000"},
			{"Cost Subject to Readiness Deposit Forfeiture", "$3,000,000"},
			{"Grand Total of All Projects", "$999,999,999"},
		},
	}
	r := &ScrapedReport{}
	extractCostSummary(tab, r)

	cs := r.CostSummary
	if cs.TotalCost != 10000000 {
		t.Errorf("TotalCost = %v", cs.TotalCost)
	}
	if cs.TOIFCost != 2000000 {
		t.Errorf("TOIFCost = %v", cs.TOIFCost)
	}
	if cs.StandAloneCost != 500000 {
		t.Errorf("StandAloneCost = %v", cs.StandAloneCost)
	}
	if cs.NetworkUpgradeCost != 6000000 {
		t.Errorf("NetworkUpgradeCost = %v", cs.NetworkUpgradeCost)
	}
	if cs.SystemReliabilityCost != 1500000 {
		t.Errorf("SystemReliabilityCost = %v", cs.SystemReliabilityCost)
	}
	if cs.CostSubjectToReadiness != 3000000 {
		t.Errorf("CostSubjectToReadiness = %v", cs.CostSubjectToReadiness)
	}
	if len(r.Errors) != 0 {
		t.Errorf("unexpected errors: %v", r.Errors)
	}
}

func TestExtractCostSummaryLastWins(t *testing.T) {
	tab := htmltable.Table{
		Headers: []string{"Description", "Cost Allocated"},
		Rows: [][]string{
			{"Total Costs", "$1"},
			{"Total Costs (Revised)", "$2"},
		},
	}
	r := &ScrapedReport{}
	extractCostSummary(tab, r)
	if r.CostSummary.TotalCost != 2 {
		t.Errorf("last row should win, got %v", r.CostSummary.TotalCost)
	}
}

func TestExtractReadinessFirstRowOnly(t *testing.T) {
	tab := htmltable.Table{
		Headers: []string{"RD1 Amount Received", "RD2 Amount due"},
		Rows: [][]string{
			{"$250,000", "$500,000"},
			{"$999", "$999"},
		},
	}
	r := &ScrapedReport{}
	extractReadiness(tab, r)
	if r.Readiness.RD1Amount != 250000 || r.Readiness.RD2Amount != 500000 {
		t.Errorf("readiness = %+v", r.Readiness)
	}
}

func TestExtractUpgradeSummary(t *testing.T) {
	tab := htmltable.Table{
		Headers: []string{"TO", "RTEP ID", "Title", "Allocated Cost ($)", "Total Cost ($)"},
		Rows: [][]string{
			{"AEP", "n9670.0 / DAYr190039", "Rebuild 138kV line", "$5,000,000", "$20,000,000"},
			{"EKPC", "(Pending) / EKPC-tc2-nu007", "New 161kV breaker", "$1,200,000", "$1,200,000"},
			{"DOM", "n9671.0", "Reconductor", "$800,000", "$3,000,000"},
			{"", "", "", "", ""},
			{"Grand Total", "", "", "$7,000,000", "$24,200,000"},
		},
	}
	r := &ScrapedReport{}
	extractUpgradeSummary(tab, r)

	if len(r.Upgrades) != 3 {
		t.Fatalf("expected 3 upgrades, got %d: %+v", len(r.Upgrades), r.Upgrades)
	}
	first := r.Upgrades[0]
	if first.RTEPID != "n9670.0" || first.TOID != "DAYr190039" {
		t.Errorf("composite ref not split: %+v", first)
	}
	if first.Utility != "AEP" || first.AllocatedCost != 5000000 || first.TotalCost != 20000000 {
		t.Errorf("first upgrade = %+v", first)
	}
	if r.Upgrades[2].TOID != "" {
		t.Errorf("plain ref should leave TOID empty: %+v", r.Upgrades[2])
	}
}

func TestExtractUpgradeSummaryMissingColumn(t *testing.T) {
	tab := htmltable.Table{Headers: []string{"A", "B"}}
	r := &ScrapedReport{}
	extractUpgradeSummary(tab, r)
	if len(r.Errors) != 1 {
		t.Fatalf("expected one extraction error, got %v", r.Errors)
	}
}

func TestExtractProjectAllocation(t *testing.T) {
	tab := htmltable.Table{
		Headers: []string{"Project", "MW Impact", "Percent Allocation", "Allocated Cost"},
		Rows: [][]string{
			{"AG2-548", "20.2 MW", "32.7%", "$1,634,000"},
			{"AH1-665", "5.0 MW", "8.1%", "$0"},  // zero cost: dropped
			{"", "10.0 MW", "16.2%", "$810,000"}, // no project: dropped
		},
	}
	r := &ScrapedReport{}
	extractProjectAllocation(tab, r)

	if len(r.Allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(r.Allocations))
	}
	a := r.Allocations[0]
	if a.ProjectID != "AG2-548" || a.MWImpact != 20.2 || a.PercentAllocation != 0.327 || a.AllocatedCost != 1634000 {
		t.Errorf("allocation = %+v", a)
	}
}

func TestExtractFacilityOverloads(t *testing.T) {
	tab := htmltable.Table{
		Headers: []string{"Facility Description", "Contingency Name", "Contingency Type", "Loading %", "Rating MVA", "MVA to Mitigate"},
		Rows: [][]string{
			{"Line A-B 138kV", "N-1 Gen Out", "Tower", "121.47 %", "250", "53.7"},
			{"", "N-1", "Line", "101.0 %", "100", "1.0"},
		},
	}
	r := &ScrapedReport{}
	extractFacilityOverloads(tab, r)

	if len(r.Overloads) != 1 {
		t.Fatalf("expected 1 overload, got %d", len(r.Overloads))
	}
	o := r.Overloads[0]
	if o.LoadingPct != 121.47 || o.RatingMVA != 250 || o.MVAToMitigate != 53.7 {
		t.Errorf("overload = %+v", o)
	}
	if o.ContingencyName != "N-1 Gen Out" || o.ContingencyType != "Tower" {
		t.Errorf("contingency fields = %+v", o)
	}
}

func TestExtractMWContributions(t *testing.T) {
	tab := htmltable.Table{
		Headers: []string{"Bus #", "Bus Name", "Type", "MW Contribution"},
		Rows: [][]string{
			{"31244", "AG2-548 GEN", "Solar", "12.345"},
			{"31245", "AH1-665_GEN", "Storage", "3.2"},
			{"11001", "KAMMER 765", "Bus", "40.0"}, // no hyphen: not a project bus
			{"31246", "AG2-549 GEN", "Solar", "0"}, // zero MW: dropped
		},
	}
	r := &ScrapedReport{}
	extractMWContributions(tab, r)

	if len(r.MWContribs) != 2 {
		t.Fatalf("expected 2 contributions, got %d: %+v", len(r.MWContribs), r.MWContribs)
	}
	if r.MWContribs[0].ProjectID != "AG2-548" {
		t.Errorf("GEN suffix not stripped: %q", r.MWContribs[0].ProjectID)
	}
	if r.MWContribs[1].ProjectID != "AH1-665" {
		t.Errorf("_GEN suffix not stripped: %q", r.MWContribs[1].ProjectID)
	}
}
