// Package pipeline runs the full footnote pipeline: normalize, segment,
// classify, evaluate rules, route. The core is a pure computation per
// footnote; footnotes fan out across workers and results come back in
// footnote-number order.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/coolbeans/citecheck/pkg/citation"
	"github.com/coolbeans/citecheck/pkg/normalize"
	"github.com/coolbeans/citecheck/pkg/review"
	"github.com/coolbeans/citecheck/pkg/rules"
	"github.com/coolbeans/citecheck/pkg/segment"
)

// Config carries the per-run policy. Routing is an explicit value so runs
// with different policies can execute concurrently.
type Config struct {
	Routing review.RoutingConfig

	// Workers caps the footnote fan-out; zero means one worker per CPU.
	Workers int
}

// DefaultConfig returns the stock pipeline configuration.
func DefaultConfig() Config {
	return Config{Routing: review.DefaultRoutingConfig()}
}

// FootnoteResult is the pipeline output for one footnote. Decisions is
// index-aligned with Citations.
type FootnoteResult struct {
	FootnoteNumber int                     `json:"footnote_number"`
	Normalized     string                  `json:"normalized"`
	Warnings       []normalize.Warning     `json:"warnings,omitempty"`
	Citations      []*citation.Citation    `json:"citations"`
	Decisions      []review.ReviewDecision `json:"decisions"`
	SkippedRules   []rules.SkippedRule     `json:"skipped_rules,omitempty"`
}

// Process runs the pipeline over a batch of footnotes, keyed by footnote
// number. The rule catalog is read-only for the duration of the run.
// Results come back sorted by footnote number regardless of which worker
// finished first; ctx cancellation abandons unprocessed footnotes.
func Process(ctx context.Context, footnotes map[int]string, catalog *rules.Catalog, cfg Config) ([]FootnoteResult, error) {
	if catalog == nil {
		return nil, fmt.Errorf("rule catalog is required")
	}
	if err := cfg.Routing.Validate(); err != nil {
		return nil, fmt.Errorf("routing config: %w", err)
	}

	numbers := make([]int, 0, len(footnotes))
	for number := range footnotes {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)

	engine := rules.NewEngine(catalog)
	classifier := citation.NewClassifier()
	router := review.NewRouter(cfg.Routing)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(numbers) {
		workers = len(numbers)
	}

	results := make([]FootnoteResult, len(numbers))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				number := numbers[idx]
				results[idx] = processFootnote(number, footnotes[number], classifier, engine, router)
			}
		}()
	}

	var cancelled error
feed:
	for idx := range numbers {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case jobs <- idx:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, cancelled
	}
	return results, nil
}

// processFootnote is the pure per-footnote computation. It performs no I/O
// and holds no shared mutable state.
func processFootnote(number int, text string, classifier *citation.Classifier, engine *rules.Engine, router *review.Router) FootnoteResult {
	normalized, warnings := normalize.Normalize(text)
	units := segment.Segment(normalized, number)

	// Every footnote yields at least one citation, even when the
	// segmenter finds nothing to split.
	if len(units) == 0 {
		units = []segment.Unit{{
			FootnoteNumber: number,
			Ordinal:        1,
			Text:           normalized,
			Start:          0,
			End:            len(normalized),
		}}
	}

	result := FootnoteResult{
		FootnoteNumber: number,
		Normalized:     normalized,
		Warnings:       warnings,
		Citations:      make([]*citation.Citation, 0, len(units)),
		Decisions:      make([]review.ReviewDecision, 0, len(units)),
	}

	for _, unit := range units {
		cit := classifier.Classify(unit)
		resolveCrossRef(cit)

		violations, skipped := engine.Evaluate(cit)
		if result.SkippedRules == nil {
			result.SkippedRules = skipped
		}

		result.Citations = append(result.Citations, cit)
		result.Decisions = append(result.Decisions, router.Route(cit, violations))
	}

	return result
}

// resolveCrossRef fills in the back-reference target a short form points
// at: an "id." resolves to the immediately preceding citation in its own
// footnote, while supra and infra already name their note number.
func resolveCrossRef(cit *citation.Citation) {
	if cit.Type != citation.TypeCrossReference || cit.CrossRef == nil {
		return
	}
	if cit.CrossRef.Kind == citation.CrossRefID && cit.Ordinal > 1 {
		cit.CrossRef.TargetOrdinal = cit.Ordinal - 1
	}
}

// BuildReport assembles a review report from a batch's results.
func BuildReport(title string, results []FootnoteResult) *review.Report {
	report := &review.Report{Title: title, GeneratedAt: time.Now().UTC()}
	for _, result := range results {
		section := review.Section{
			FootnoteNumber: result.FootnoteNumber,
			Warnings:       result.Warnings,
		}
		for i, cit := range result.Citations {
			section.Rows = append(section.Rows, review.Row{
				Citation: cit,
				Decision: result.Decisions[i],
			})
		}
		report.Sections = append(report.Sections, section)
	}
	return report
}
