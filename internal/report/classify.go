package report

import (
	"strings"

	"github.com/hurttlocker/queueinsight/internal/htmltable"
)

// TableRole is the semantic role a table plays within a report.
type TableRole int

const (
	RoleUnknown TableRole = iota
	RoleCostSummary
	RoleReadiness
	RoleUpgradeSummary
	RoleProjectAllocation
	RoleFacilityOverload
	RoleGeneratorContribution
)

func (r TableRole) String() string {
	switch r {
	case RoleCostSummary:
		return "cost_summary"
	case RoleReadiness:
		return "readiness"
	case RoleUpgradeSummary:
		return "upgrade_summary"
	case RoleProjectAllocation:
		return "project_allocation"
	case RoleFacilityOverload:
		return "facility_overload"
	case RoleGeneratorContribution:
		return "generator_contribution"
	default:
		return "unknown"
	}
}

// Classify decides a table's role from its header tokens alone. The checks
// run in a fixed priority order because signatures overlap: an upgrade
// summary also mentions "Project", and an allocation table also mentions
// cost columns. Most tables in a document match nothing and come back
// RoleUnknown, which is not an error — decorative and navigational tables
// are simply skipped.
func Classify(t htmltable.Table) TableRole {
	header := t.HeaderText()
	lower := strings.ToLower(header)

	switch {
	case strings.Contains(header, "RTEP ID") &&
		strings.Contains(header, "Title") &&
		strings.Contains(header, "Allocated Cost"):
		return RoleUpgradeSummary

	case strings.Contains(header, "Project") &&
		strings.Contains(header, "MW Impact") &&
		strings.Contains(header, "Percent Allocation"):
		return RoleProjectAllocation

	case strings.Contains(header, "Facility") &&
		strings.Contains(header, "Loading") &&
		strings.Contains(header, "Rating"):
		return RoleFacilityOverload

	case strings.Contains(lower, "bus") &&
		strings.Contains(lower, "mw contribution"):
		return RoleGeneratorContribution

	case strings.Contains(header, "RD1") ||
		strings.Contains(header, "RD2") ||
		strings.Contains(lower, "readiness deposit"):
		return RoleReadiness

	case strings.Contains(header, "Cost Allocated"):
		return RoleCostSummary
	}

	return RoleUnknown
}
