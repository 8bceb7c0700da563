// Package store persists pipeline runs to SQLite so decisions can be
// queried and reported after the fact. The pure core never touches it;
// the CLI is its only caller.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/coolbeans/citecheck/pkg/citation"
	"github.com/coolbeans/citecheck/pkg/normalize"
	"github.com/coolbeans/citecheck/pkg/pipeline"
	"github.com/coolbeans/citecheck/pkg/review"
)

// Store manages the decision database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the decision database at path, creating the schema
// if it does not exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			title TEXT,
			created_at TEXT NOT NULL,
			footnotes INTEGER NOT NULL,
			citations INTEGER NOT NULL,
			approved INTEGER NOT NULL,
			flagged INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			id TEXT NOT NULL,
			run_id TEXT NOT NULL REFERENCES runs(id),
			footnote_number INTEGER NOT NULL,
			ordinal INTEGER NOT NULL,
			type TEXT NOT NULL,
			confidence REAL NOT NULL,
			full_text TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (run_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_run ON citations(run_id, footnote_number, ordinal)`,
		`CREATE TABLE IF NOT EXISTS violations (
			run_id TEXT NOT NULL,
			citation_id TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			suggested_fix TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_run ON violations(run_id, citation_id)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			run_id TEXT NOT NULL,
			citation_id TEXT NOT NULL,
			recommendation TEXT NOT NULL,
			confidence REAL NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (run_id, citation_id)
		)`,
		`CREATE TABLE IF NOT EXISTS footnote_warnings (
			run_id TEXT NOT NULL,
			footnote_number INTEGER NOT NULL,
			message TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RunSummary describes one stored run.
type RunSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Footnotes int       `json:"footnotes"`
	Citations int       `json:"citations"`
	Approved  int       `json:"approved"`
	Flagged   int       `json:"flagged"`
}

// SaveRun persists a batch's results and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, title string, results []pipeline.FootnoteResult) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var citations, approved, flagged int
	for _, result := range results {
		for _, warning := range result.Warnings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO footnote_warnings (run_id, footnote_number, message) VALUES (?, ?, ?)`,
				runID, result.FootnoteNumber, warning.Message); err != nil {
				return "", fmt.Errorf("inserting warning: %w", err)
			}
		}

		for i, cit := range result.Citations {
			payload, err := json.Marshal(cit)
			if err != nil {
				return "", fmt.Errorf("encoding citation %s: %w", cit.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO citations (id, run_id, footnote_number, ordinal, type, confidence, full_text, payload)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				cit.ID.String(), runID, cit.FootnoteNumber, cit.Ordinal,
				string(cit.Type), cit.Confidence, cit.FullText, string(payload)); err != nil {
				return "", fmt.Errorf("inserting citation %s: %w", cit.ID, err)
			}

			decision := result.Decisions[i]
			citations++
			if decision.Recommendation == review.Approve {
				approved++
			} else {
				flagged++
			}

			decisionPayload, err := json.Marshal(decision)
			if err != nil {
				return "", fmt.Errorf("encoding decision for %s: %w", cit.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO decisions (run_id, citation_id, recommendation, confidence, payload)
				 VALUES (?, ?, ?, ?, ?)`,
				runID, cit.ID.String(), string(decision.Recommendation),
				decision.Confidence, string(decisionPayload)); err != nil {
				return "", fmt.Errorf("inserting decision for %s: %w", cit.ID, err)
			}

			for _, violation := range decision.Violations {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO violations (run_id, citation_id, rule_id, severity, message, suggested_fix)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					runID, cit.ID.String(), violation.RuleID,
					string(violation.Severity), violation.Message, violation.SuggestedFix); err != nil {
					return "", fmt.Errorf("inserting violation %s: %w", violation.RuleID, err)
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, title, created_at, footnotes, citations, approved, flagged)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, title, time.Now().UTC().Format(time.RFC3339), len(results),
		citations, approved, flagged); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, footnotes, citations, approved, flagged
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		var createdAt string
		if err := rows.Scan(&summary.ID, &summary.Title, &createdAt,
			&summary.Footnotes, &summary.Citations, &summary.Approved, &summary.Flagged); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		summary.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// Run fetches one run summary.
func (s *Store) Run(ctx context.Context, runID string) (RunSummary, error) {
	var summary RunSummary
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, footnotes, citations, approved, flagged
		 FROM runs WHERE id = ?`, runID).
		Scan(&summary.ID, &summary.Title, &createdAt,
			&summary.Footnotes, &summary.Citations, &summary.Approved, &summary.Flagged)
	if err == sql.ErrNoRows {
		return RunSummary{}, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("querying run: %w", err)
	}
	summary.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return summary, nil
}

// FlaggedCitations returns the citations a run flagged for review, in
// footnote then ordinal order.
func (s *Store) FlaggedCitations(ctx context.Context, runID string) ([]*citation.Citation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.payload FROM citations c
		 JOIN decisions d ON d.run_id = c.run_id AND d.citation_id = c.id
		 WHERE c.run_id = ? AND d.recommendation = ?
		 ORDER BY c.footnote_number, c.ordinal`,
		runID, string(review.FlagForReview))
	if err != nil {
		return nil, fmt.Errorf("querying flagged citations: %w", err)
	}
	defer rows.Close()

	var citations []*citation.Citation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		var cit citation.Citation
		if err := json.Unmarshal([]byte(payload), &cit); err != nil {
			return nil, fmt.Errorf("decoding citation: %w", err)
		}
		citations = append(citations, &cit)
	}
	return citations, rows.Err()
}

// LoadReport rebuilds a run's review report from the stored rows.
func (s *Store) LoadReport(ctx context.Context, runID string) (*review.Report, error) {
	summary, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &review.Report{
		Title:       summary.Title,
		GeneratedAt: summary.CreatedAt,
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.footnote_number, c.payload, d.payload FROM citations c
		 JOIN decisions d ON d.run_id = c.run_id AND d.citation_id = c.id
		 WHERE c.run_id = ?
		 ORDER BY c.footnote_number, c.ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var section *review.Section
	for rows.Next() {
		var footnoteNumber int
		var citationPayload, decisionPayload string
		if err := rows.Scan(&footnoteNumber, &citationPayload, &decisionPayload); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}

		var cit citation.Citation
		if err := json.Unmarshal([]byte(citationPayload), &cit); err != nil {
			return nil, fmt.Errorf("decoding citation: %w", err)
		}
		var decision review.ReviewDecision
		if err := json.Unmarshal([]byte(decisionPayload), &decision); err != nil {
			return nil, fmt.Errorf("decoding decision: %w", err)
		}

		if section == nil || section.FootnoteNumber != footnoteNumber {
			report.Sections = append(report.Sections, review.Section{FootnoteNumber: footnoteNumber})
			section = &report.Sections[len(report.Sections)-1]
		}
		section.Rows = append(section.Rows, review.Row{Citation: &cit, Decision: decision})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	warnings, err := s.footnoteWarnings(ctx, runID)
	if err != nil {
		return nil, err
	}
	for i := range report.Sections {
		report.Sections[i].Warnings = warnings[report.Sections[i].FootnoteNumber]
	}

	return report, nil
}

func (s *Store) footnoteWarnings(ctx context.Context, runID string) (map[int][]normalize.Warning, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT footnote_number, message FROM footnote_warnings WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying warnings: %w", err)
	}
	defer rows.Close()

	warnings := make(map[int][]normalize.Warning)
	for rows.Next() {
		var footnoteNumber int
		var message string
		if err := rows.Scan(&footnoteNumber, &message); err != nil {
			return nil, fmt.Errorf("scanning warning: %w", err)
		}
		warnings[footnoteNumber] = append(warnings[footnoteNumber], normalize.Warning{Message: message})
	}
	return warnings, rows.Err()
}
