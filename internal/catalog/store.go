// Package catalog persists certified rules and their eval history.
// Re-authoring a rule creates a new version row rather than mutating
// the old one, so recorded eval runs stay attributable.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/langware-labs/skillit/internal/classify"
	"github.com/langware-labs/skillit/internal/eval"
	"github.com/langware-labs/skillit/internal/hooks"
	"github.com/langware-labs/skillit/internal/logger"
	"github.com/langware-labs/skillit/internal/rule"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// Store defines the rule catalog persistence interface
type Store interface {
	SaveRule(r *rule.Rule) error
	GetRule(name string) (*Record, error)
	ListRules() ([]*Record, error)
	DeleteRule(name string) error

	RecordEvalRun(r *rule.Rule, evaluation *eval.RuleEvaluation) error
	EvalHistory(name string) ([]*EvalRun, error)
	IsCertified(name string) (bool, error)

	KnownRules() ([]classify.KnownRule, error)

	Close() error
}

// Record is one stored rule version
type Record struct {
	Name        string
	Version     int
	Description string
	HookEvents  []hooks.EventType
	Certified   bool
	CreatedAt   time.Time
}

// EvalRun is one recorded harness run
type EvalRun struct {
	ID        int64
	RuleName  string
	Version   int
	Total     int
	Passed    int
	Failed    int
	AllPassed bool
	CreatedAt time.Time
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewSQLiteStore opens (or creates) the catalog database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, ".skillit", "catalog.db")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug().
		Str("path", dbPath).
		Msg("Opened rule catalog")

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		description TEXT,
		hook_events TEXT NOT NULL,
		certified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (name, version)
	);

	CREATE TABLE IF NOT EXISTS eval_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_name TEXT NOT NULL,
		version INTEGER NOT NULL,
		total INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		all_passed INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_eval_runs_rule ON eval_runs(rule_name, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRule stores the rule's current version. Saving an existing
// (name, version) pair bumps the version instead of mutating it: rules
// are immutable once recorded.
func (s *SQLiteStore) SaveRule(r *rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := r.Version
	if version == 0 {
		version = 1
	}

	var existing int
	err := s.db.QueryRow(
		"SELECT COALESCE(MAX(version), 0) FROM rules WHERE name = ?", r.Name,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to query rule versions: %w", err)
	}
	if version <= existing {
		version = existing + 1
	}

	eventsJSON, err := json.Marshal(r.HookEvents)
	if err != nil {
		return fmt.Errorf("failed to marshal hook events: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO rules (name, version, description, hook_events, certified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, version, r.Description, string(eventsJSON), boolToInt(r.Certified), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	r.Version = version
	return nil
}

// GetRule returns the latest version of a rule
func (s *SQLiteStore) GetRule(name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT name, version, description, hook_events, certified, created_at
		 FROM rules WHERE name = ? ORDER BY version DESC LIMIT 1`,
		name,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule not found: %s", name)
	}
	return rec, err
}

// ListRules returns the latest version of every rule, ordered by name
func (s *SQLiteStore) ListRules() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT name, version, description, hook_events, certified, created_at
		 FROM rules r
		 WHERE version = (SELECT MAX(version) FROM rules WHERE name = r.name)
		 ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteRule removes all versions of a rule and its eval history. A
// rule owns its eval cases: deleting the rule invalidates them.
func (s *SQLiteStore) DeleteRule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM eval_runs WHERE rule_name = ?", name); err != nil {
		return fmt.Errorf("failed to delete eval runs: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM rules WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	return tx.Commit()
}

// RecordEvalRun stores a harness run and updates the rule version's
// certified flag accordingly
func (s *SQLiteStore) RecordEvalRun(r *rule.Rule, evaluation *eval.RuleEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(evaluation.Cases)
	passed := evaluation.Passed()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO eval_runs (rule_name, version, total, passed, failed, all_passed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Version, total, passed, total-passed, boolToInt(evaluation.AllPassed()), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record eval run: %w", err)
	}

	_, err = tx.Exec(
		"UPDATE rules SET certified = ? WHERE name = ? AND version = ?",
		boolToInt(evaluation.AllPassed()), r.Name, r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update certification: %w", err)
	}

	return tx.Commit()
}

// EvalHistory returns recorded harness runs for a rule, oldest first
func (s *SQLiteStore) EvalHistory(name string) ([]*EvalRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, rule_name, version, total, passed, failed, all_passed, created_at
		 FROM eval_runs WHERE rule_name = ? ORDER BY created_at ASC, id ASC`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get eval history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*EvalRun
	for rows.Next() {
		var run EvalRun
		var allPassed int
		var createdAt int64

		if err := rows.Scan(&run.ID, &run.RuleName, &run.Version, &run.Total, &run.Passed, &run.Failed, &allPassed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan eval run: %w", err)
		}
		run.AllPassed = allPassed != 0
		run.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// IsCertified reports whether the latest version of a rule is certified
func (s *SQLiteStore) IsCertified(name string) (bool, error) {
	rec, err := s.GetRule(name)
	if err != nil {
		return false, err
	}
	return rec.Certified, nil
}

// KnownRules returns the certified rules in the shape the
// classification matcher consumes
func (s *SQLiteStore) KnownRules() ([]classify.KnownRule, error) {
	records, err := s.ListRules()
	if err != nil {
		return nil, err
	}

	var known []classify.KnownRule
	for _, rec := range records {
		if !rec.Certified {
			continue
		}
		known = append(known, classify.KnownRule{Name: rec.Name, Description: rec.Description})
	}
	return known, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var eventsJSON string
	var certified int
	var createdAt int64

	if err := row.Scan(&rec.Name, &rec.Version, &rec.Description, &eventsJSON, &certified, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	if err := json.Unmarshal([]byte(eventsJSON), &rec.HookEvents); err != nil {
		logger.Debug().Err(err).Str("rule", rec.Name).Msg("Failed to unmarshal hook events")
	}
	rec.Certified = certified != 0
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
