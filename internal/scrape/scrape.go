// Package scrape fetches study documents and turns each into a structured
// report.
//
// Fetching is polite by construction: a shared governor spaces requests out
// no matter how many workers run, and every request carries the configured
// user agent. A document that fails to fetch or parse still yields a
// report — empty, carrying one error — so the batch output always has one
// entry per roster row.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/queueinsight/internal/config"
	"github.com/hurttlocker/queueinsight/internal/htmltable"
	"github.com/hurttlocker/queueinsight/internal/report"
	"github.com/hurttlocker/queueinsight/internal/roster"
)

// Governor spaces requests out by a minimum interval. Concurrent callers
// each reserve the next slot, so the spacing holds across workers.
type Governor struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewGovernor returns a governor enforcing the given minimum interval
// between requests. A zero or negative interval never waits.
func NewGovernor(interval time.Duration) *Governor {
	return &Governor{interval: interval}
}

// Wait blocks until this caller's reserved slot arrives or the context is
// canceled.
func (g *Governor) Wait(ctx context.Context) error {
	g.mu.Lock()
	now := time.Now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	d := time.Until(slot)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Scraper fetches and extracts reports.
type Scraper struct {
	client   *http.Client
	governor *Governor
	cfg      config.ScrapeConfig
	log      *zap.Logger
}

// NewScraper returns a scraper configured from cfg.
func NewScraper(cfg config.ScrapeConfig, log *zap.Logger) *Scraper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scraper{
		client:   &http.Client{Timeout: cfg.Timeout()},
		governor: NewGovernor(cfg.Delay()),
		cfg:      cfg,
		log:      log,
	}
}

// ScrapeReport fetches one entry's document and extracts it. Fetch and
// parse failures are recorded on the returned report, never returned as an
// error: one dead link must not sink a batch. The only error out of here is
// context cancellation.
func (s *Scraper) ScrapeReport(ctx context.Context, entry roster.Entry) (*report.ScrapedReport, error) {
	if err := s.governor.Wait(ctx); err != nil {
		return nil, err
	}

	key := report.Key{
		ProjectID: entry.ProjectID,
		Cluster:   entry.Cluster,
		Phase:     entry.Phase,
		ReportURL: entry.ReportURL,
	}

	tables, err := s.fetchTables(ctx, entry.ReportURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r := report.Assemble(nil, key, entry.Meta)
		r.AddError(fmt.Sprintf("fetching report: %v", err))
		return r, nil
	}

	return report.Assemble(tables, key, entry.Meta), nil
}

func (s *Scraper) fetchTables(ctx context.Context, url string) ([]htmltable.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return htmltable.Parse(resp.Body)
}

// BatchResult is one scrape run over a roster slice.
type BatchResult struct {
	RunID     string                  `json:"run_id"`
	Cluster   string                  `json:"cluster"`
	Phase     string                  `json:"phase"`
	StartedAt time.Time               `json:"started_at"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Reports   []*report.ScrapedReport `json:"reports"`
}

// RunBatch scrapes every entry with the configured worker count. The result
// preserves roster order. A report that carries extraction errors but still
// has data counts as succeeded; only a report with no data at all counts as
// failed.
func (s *Scraper) RunBatch(ctx context.Context, entries []roster.Entry) (*BatchResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to scrape")
	}

	result := &BatchResult{
		RunID:     uuid.NewString(),
		Cluster:   entries[0].Cluster,
		Phase:     entries[0].Phase,
		StartedAt: time.Now().UTC(),
		Reports:   make([]*report.ScrapedReport, len(entries)),
	}

	s.log.Info("scrape batch starting",
		zap.String("run_id", result.RunID),
		zap.String("cluster", result.Cluster),
		zap.String("phase", result.Phase),
		zap.Int("entries", len(entries)),
		zap.Int("workers", s.cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, entry := range entries {
		g.Go(func() error {
			r, err := s.ScrapeReport(gctx, entry)
			if err != nil {
				return err
			}
			result.Reports[i] = r
			s.log.Info("report scraped",
				zap.String("project", entry.ProjectID),
				zap.Int("upgrades", len(r.Upgrades)),
				zap.Int("errors", len(r.Errors)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range result.Reports {
		if reportEmpty(r) {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	s.log.Info("scrape batch complete",
		zap.String("run_id", result.RunID),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

// reportEmpty reports whether extraction produced nothing usable.
func reportEmpty(r *report.ScrapedReport) bool {
	return r.CostSummary == (report.CostSummary{}) &&
		r.Readiness == (report.ReadinessDeposit{}) &&
		len(r.Upgrades) == 0 &&
		len(r.Allocations) == 0 &&
		len(r.Overloads) == 0 &&
		len(r.MWContribs) == 0
}

// WriteBatch writes a batch to dir as pretty-printed JSON and returns the
// file path. The name embeds cluster, phase, and run id, so successive runs
// never clobber each other.
func WriteBatch(dir string, batch *BatchResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	name := fmt.Sprintf("scraped_%s_%s_%s.json",
		sanitize(batch.Cluster), sanitize(batch.Phase), batch.RunID)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding batch: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing batch: %w", err)
	}
	return path, nil
}

// ReadBatch reads a batch file written by WriteBatch.
func ReadBatch(path string) (*BatchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}
	batch := &BatchResult{}
	if err := json.Unmarshal(data, batch); err != nil {
		return nil, fmt.Errorf("decoding batch %s: %w", path, err)
	}
	return batch, nil
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}
