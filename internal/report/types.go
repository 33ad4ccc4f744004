// Package report turns the raw tables of one study document into typed
// domain records.
//
// A report's tables carry no stable identity: the cost summary may be the
// first table or the fourth, the upgrade summary appears wherever the
// authoring tool put it, and most tables in a document are navigational
// noise. Classification is therefore by header content, never by position
// (with one documented last-resort fallback for the two financial summary
// tables), and each recognized role has its own extractor.
package report

// CostSummary is the project-level cost breakdown from the financial
// summary table.
type CostSummary struct {
	TotalCost              float64 `json:"total_cost"`
	TOIFCost               float64 `json:"toif_cost"`
	StandAloneCost         float64 `json:"stand_alone_cost"`
	NetworkUpgradeCost     float64 `json:"network_upgrade_cost"`
	SystemReliabilityCost  float64 `json:"system_reliability_cost"`
	CostSubjectToReadiness float64 `json:"cost_subject_to_readiness"`
}

// ReadinessDeposit holds the staged deposit amounts. Deposits are
// single-valued per report, not per-row.
type ReadinessDeposit struct {
	RD1Amount float64 `json:"rd1_amount"`
	RD2Amount float64 `json:"rd2_amount"`
}

// Upgrade is one shared network upgrade named in the upgrade summary.
type Upgrade struct {
	RTEPID        string  `json:"rtep_id"`
	TOID          string  `json:"to_id"`
	Utility       string  `json:"utility"`
	Title         string  `json:"title"`
	TotalCost     float64 `json:"total_cost"`
	AllocatedCost float64 `json:"allocated_cost"`
}

// ProjectAllocation is one row of a per-upgrade allocation table: another
// project's share of an upgrade this report describes.
type ProjectAllocation struct {
	ProjectID         string  `json:"project_id"`
	MWImpact          float64 `json:"mw_impact"`
	PercentAllocation float64 `json:"percent_allocation"`
	AllocatedCost     float64 `json:"allocated_cost"`
}

// FacilityOverload is one overloaded facility identified by the study.
type FacilityOverload struct {
	FacilityName    string  `json:"facility_name"`
	ContingencyName string  `json:"contingency_name"`
	ContingencyType string  `json:"contingency_type"`
	LoadingPct      float64 `json:"loading_pct"`
	RatingMVA       float64 `json:"rating_mva"`
	MVAToMitigate   float64 `json:"mva_to_mitigate"`
}

// MWContribution is one generator's MW contribution to a facility overload.
// The project id is derived from the generator bus name.
type MWContribution struct {
	ProjectID        string  `json:"project_id"`
	ContributionType string  `json:"contribution_type"`
	MWContribution   float64 `json:"mw_contribution"`
}

// Meta is the sidecar metadata carried alongside a report from the project
// roster. It is merged onto the project record at load time; nothing in it
// is extracted from the document itself.
type Meta struct {
	Developer    string  `json:"developer,omitempty"`
	Utility      string  `json:"utility,omitempty"`
	State        string  `json:"state,omitempty"`
	County       string  `json:"county,omitempty"`
	FuelType     string  `json:"fuel_type,omitempty"`
	MWCapacity   float64 `json:"mw_capacity,omitempty"`
	MWEnergy     float64 `json:"mw_energy,omitempty"`
	Status       string  `json:"status,omitempty"`
	RequestedCOD string  `json:"requested_cod,omitempty"`
}

// ScrapedReport is the complete extraction result for one document. Partial
// results are normal: a failed table leaves its slice empty and an entry in
// Errors, and a failed document leaves everything empty with a single error.
type ScrapedReport struct {
	ProjectID string `json:"project_id"`
	Cluster   string `json:"cluster"`
	Phase     string `json:"phase"`
	ReportURL string `json:"report_url"`

	CostSummary CostSummary         `json:"cost_summary"`
	Readiness   ReadinessDeposit    `json:"readiness"`
	Upgrades    []Upgrade           `json:"upgrades"`
	Allocations []ProjectAllocation `json:"project_allocations"`
	Overloads   []FacilityOverload  `json:"facility_overloads"`
	MWContribs  []MWContribution    `json:"mw_contributions"`

	Meta Meta `json:"roster_meta"`

	Errors []string `json:"errors,omitempty"`
}

// AddError records a non-fatal extraction problem on the report.
func (r *ScrapedReport) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
