// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package insights persists analysis runs (ranked problems with their
// evidence) in a local SQLite database with full-text search over quotes.
// The pipeline itself is stateless; persistence is opt-in at the CLI
// boundary.
//
// Evidence search uses an FTS5 virtual table, so builds must compile
// go-sqlite3 with the sqlite_fts5 tag (the mage Build and Test targets do).
package insights

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

const dbFile = "insights.db"

// Store manages the analysis history SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the history database at historyDir/insights.db,
// creating the schema if it does not exist.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	dir := cfg.HistoryDir
	if dir == "" {
		dir = "history"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			transcripts INTEGER NOT NULL,
			problems INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS problems (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			problem_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			reach INTEGER, intensity INTEGER, user_value INTEGER, confidence INTEGER,
			total INTEGER,
			reasoning TEXT,
			tradeoffs TEXT,
			tie_break TEXT,
			mentioned_by TEXT,
			urgency_signals TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_problems_run_id ON problems(run_id)`,
		`CREATE TABLE IF NOT EXISTS evidence (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			problem_rowid INTEGER NOT NULL REFERENCES problems(rowid),
			quote TEXT NOT NULL,
			speaker TEXT,
			role TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_problem ON evidence(problem_rowid)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='evidence_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE evidence_fts USING fts5(quote, content=evidence, content_rowid=rowid)`,
			`CREATE TRIGGER evidence_ai AFTER INSERT ON evidence BEGIN
				INSERT INTO evidence_fts(rowid, quote) VALUES (new.rowid, new.quote);
			END`,
			`CREATE TRIGGER evidence_ad AFTER DELETE ON evidence BEGIN
				INSERT INTO evidence_fts(evidence_fts, rowid, quote) VALUES('delete', old.rowid, old.quote);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SaveRun persists one analysis run and returns its ID.
func (s *Store) SaveRun(ctx context.Context, ranked []types.RankedProblem, transcriptCount int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, transcripts, problems) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), transcriptCount, len(ranked),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	problemStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO problems (run_id, problem_id, rank, title, description,
			reach, intensity, user_value, confidence, total,
			reasoning, tradeoffs, tie_break, mentioned_by, urgency_signals)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing problem insert: %w", err)
	}
	defer problemStmt.Close()

	evidenceStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO evidence (problem_rowid, quote, speaker, role) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing evidence insert: %w", err)
	}
	defer evidenceStmt.Close()

	for _, r := range ranked {
		mentionedJSON, _ := json.Marshal(r.MentionedBy)
		signalsJSON, _ := json.Marshal(r.UrgencySignals)
		res, err := problemStmt.ExecContext(ctx,
			runID, r.ID, r.Rank, r.Title, r.Description,
			r.Score.Reach, r.Score.Intensity, r.Score.UserValue, r.Score.Confidence, r.Score.Total,
			r.Score.Reasoning, r.Score.Tradeoffs, r.TieBreak,
			string(mentionedJSON), string(signalsJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting problem %q: %w", r.Title, err)
		}
		problemRowID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading problem rowid: %w", err)
		}
		for _, ev := range r.Evidence {
			if _, err := evidenceStmt.ExecContext(ctx, problemRowID, ev.Quote, ev.Speaker, ev.Role); err != nil {
				return 0, fmt.Errorf("inserting evidence for %q: %w", r.Title, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID          int64  `json:"id" yaml:"id"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
	Transcripts int    `json:"transcripts" yaml:"transcripts"`
	Problems    int    `json:"problems" yaml:"problems"`
	TopProblem  string `json:"top_problem" yaml:"top_problem"`
}

// Runs lists saved analysis runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.created_at, r.transcripts, r.problems,
			COALESCE((SELECT title FROM problems p WHERE p.run_id = r.id AND p.rank = 1), '')
		 FROM runs r ORDER BY r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Transcripts, &r.Problems, &r.TopProblem); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Problems returns the ranked problems of one run, in rank order.
func (s *Store) Problems(ctx context.Context, runID int64) ([]types.RankedProblem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, problem_id, rank, title, description,
			reach, intensity, user_value, confidence, total,
			reasoning, tradeoffs, tie_break, mentioned_by, urgency_signals
		 FROM problems WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying problems: %w", err)
	}
	defer rows.Close()

	var out []types.RankedProblem
	var rowIDs []int64
	for rows.Next() {
		var r types.RankedProblem
		var rowID int64
		var mentionedJSON, signalsJSON string
		if err := rows.Scan(&rowID, &r.ID, &r.Rank, &r.Title, &r.Description,
			&r.Score.Reach, &r.Score.Intensity, &r.Score.UserValue, &r.Score.Confidence, &r.Score.Total,
			&r.Score.Reasoning, &r.Score.Tradeoffs, &r.TieBreak, &mentionedJSON, &signalsJSON); err != nil {
			return nil, fmt.Errorf("scanning problem: %w", err)
		}
		json.Unmarshal([]byte(mentionedJSON), &r.MentionedBy)
		json.Unmarshal([]byte(signalsJSON), &r.UrgencySignals)
		out = append(out, r)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, rowID := range rowIDs {
		evidence, err := s.problemEvidence(ctx, rowID)
		if err != nil {
			return nil, err
		}
		out[i].Evidence = evidence
	}
	return out, nil
}

func (s *Store) problemEvidence(ctx context.Context, problemRowID int64) ([]types.Evidence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT quote, speaker, role FROM evidence WHERE problem_rowid = ? ORDER BY rowid`, problemRowID)
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}
	defer rows.Close()

	var out []types.Evidence
	for rows.Next() {
		var ev types.Evidence
		if err := rows.Scan(&ev.Quote, &ev.Speaker, &ev.Role); err != nil {
			return nil, fmt.Errorf("scanning evidence: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EvidenceHit is one full-text search result with its problem context.
type EvidenceHit struct {
	RunID   int64  `json:"run_id" yaml:"run_id"`
	Rank    int    `json:"rank" yaml:"rank"`
	Problem string `json:"problem" yaml:"problem"`
	Quote   string `json:"quote" yaml:"quote"`
	Speaker string `json:"speaker" yaml:"speaker"`
}

// SearchEvidence runs an FTS5 query over stored quotes. When limit is 0 the
// store default applies.
func (s *Store) SearchEvidence(ctx context.Context, query string, limit int) ([]EvidenceHit, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.run_id, p.rank, p.title, e.quote, e.speaker
		 FROM evidence_fts f
		 JOIN evidence e ON e.rowid = f.rowid
		 JOIN problems p ON p.rowid = e.problem_rowid
		 WHERE evidence_fts MATCH ?
		 ORDER BY f.rank
		 LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching evidence: %w", err)
	}
	defer rows.Close()

	var out []EvidenceHit
	for rows.Next() {
		var h EvidenceHit
		if err := rows.Scan(&h.RunID, &h.Rank, &h.Problem, &h.Quote, &h.Speaker); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// runExport is the serialized form of one run.
type runExport struct {
	Run      RunSummary            `json:"run" yaml:"run"`
	Problems []types.RankedProblem `json:"problems" yaml:"problems"`
}

// Export writes one run as YAML or JSON to w.
func (s *Store) Export(ctx context.Context, w io.Writer, runID int64, format string) error {
	var run RunSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, transcripts, problems FROM runs WHERE id = ?`, runID,
	).Scan(&run.ID, &run.CreatedAt, &run.Transcripts, &run.Problems)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return fmt.Errorf("querying run %d: %w", runID, err)
	}

	problems, err := s.Problems(ctx, runID)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		run.TopProblem = problems[0].Title
	}

	export := runExport{Run: run, Problems: problems}

	switch format {
	case "yaml", "":
		data, err := yaml.Marshal(export)
		if err != nil {
			return fmt.Errorf("marshaling export: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(export)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}
