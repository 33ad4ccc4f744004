// Package roster reads the externally maintained project list that drives a
// scrape run.
//
// The roster is a CSV export of the cycle-projects spreadsheet: one row per
// queue project, with per-phase report URL columns ("Phase 1 SIS Report",
// "Phase 2 SIS Report", ...) and descriptive sidecar columns (developer,
// transmission owner, location, fuel, capacity). The pipeline does not own
// this file — it only consumes it, and it extracts nothing from it beyond
// what is merged onto the project record at load time.
package roster

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hurttlocker/queueinsight/internal/report"
)

// Entry is one scrapeable project: identity, document URL, and sidecar
// metadata.
type Entry struct {
	ProjectID string
	ReportURL string
	Cluster   string
	Phase     string
	Meta      report.Meta
}

// Load reads the roster CSV and returns the entries for one cluster and
// phase. Rows without an http(s) report URL for that phase are skipped —
// projects whose reports have not been published yet are normal, not
// errors. Malformed rows are skipped and reported as warnings.
func Load(path, cluster, phase string) ([]Entry, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("roster %s has no data rows", path)
	}

	index := mapHeaders(records[0])
	for _, required := range []string{"project id", "cycle"} {
		if _, ok := index[required]; !ok {
			return nil, nil, fmt.Errorf("roster missing required column %q", required)
		}
	}

	urlCol := reportURLColumn(phase)
	if _, ok := index[urlCol]; !ok {
		return nil, nil, fmt.Errorf("roster missing report column %q for phase %s", urlCol, phase)
	}

	var entries []Entry
	var warnings []string
	for line, row := range records[1:] {
		get := func(key string) string {
			pos, ok := index[key]
			if !ok || pos >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[pos])
		}

		if !strings.EqualFold(get("cycle"), cluster) {
			continue
		}
		if stage := get("stage"); stage != "" && !stageMatches(stage, phase) {
			continue
		}

		projectID := get("project id")
		if projectID == "" {
			warnings = append(warnings, fmt.Sprintf("row %d: missing project id", line+2))
			continue
		}
		url := get(urlCol)
		if !strings.HasPrefix(url, "http") {
			continue
		}

		entries = append(entries, Entry{
			ProjectID: projectID,
			ReportURL: url,
			Cluster:   cluster,
			Phase:     phase,
			Meta: report.Meta{
				Developer:    get("developer"),
				Utility:      get("transmission owner"),
				State:        get("state"),
				County:       get("county"),
				FuelType:     get("fuel"),
				MWCapacity:   parseFloat(get("mw capacity")),
				MWEnergy:     parseFloat(get("mw energy")),
				Status:       get("status"),
				RequestedCOD: get("requested in-service date"),
			},
		})
	}

	return entries, warnings, nil
}

func mapHeaders(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return index
}

// reportURLColumn maps a phase tag to its roster column: "PHASE_1" reports
// live under "Phase 1 SIS Report".
func reportURLColumn(phase string) string {
	num := strings.TrimPrefix(strings.ToUpper(phase), "PHASE_")
	num = strings.TrimPrefix(num, "PHASE")
	return strings.ToLower(fmt.Sprintf("Phase %s SIS Report", strings.TrimSpace(num)))
}

// stageMatches compares the roster's free-form stage value ("Phase 2",
// "PHASE 1") against a phase tag ("PHASE_1").
func stageMatches(stage, phase string) bool {
	want := strings.ToLower(strings.ReplaceAll(phase, "_", " "))
	return strings.Contains(strings.ToLower(stage), want)
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
