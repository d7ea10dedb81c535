package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"homewatch/models"
)

// LedgerStore is the durable job ledger plus the operational tables the
// daemon needs (pipeline runs, trigger commands). One row per job key; rows
// are never deleted.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(dbPath string) (*LedgerStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &LedgerStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *LedgerStore) Close() error {
	return s.db.Close()
}

func (s *LedgerStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_jobs (
		key TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_url TEXT,
		created_at DATETIME NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 1,
		result_count INTEGER NOT NULL DEFAULT 0,
		initial_run BOOLEAN NOT NULL DEFAULT FALSE,
		consumed_by_ingestion BOOLEAN NOT NULL DEFAULT FALSE,
		consumed_by_downstream BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id INTEGER PRIMARY KEY,
		initial_run BOOLEAN,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		jobs_created INTEGER DEFAULT 0,
		jobs_ready INTEGER DEFAULT 0,
		jobs_failed INTEGER DEFAULT 0,
		retries_run INTEGER DEFAULT 0,
		listings_seen INTEGER DEFAULT 0,
		properties_new INTEGER DEFAULT 0,
		transitions INTEGER DEFAULT 0,
		enriched INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON scrape_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_ready ON scrape_jobs(status, consumed_by_ingestion, initial_run);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_runs_status ON pipeline_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateJob registers a job before the remote call is issued. Status starts
// at running with attempt 1 and both consumption flags false.
func (s *LedgerStore) CreateJob(key, sourceID, sourceURL string, initialRun bool) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_jobs (key, status, source_id, source_url, created_at, attempt_count, initial_run, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		key, models.JobStatusRunning, sourceID, sourceURL, time.Now().UTC(), initialRun, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create job %s: %w", key, err)
	}
	return nil
}

// MarkReady records a successful fetch. An absent key is an expected race
// with manual intervention, logged and skipped rather than raised.
func (s *LedgerStore) MarkReady(key string, resultCount int) error {
	res, err := s.db.Exec(`
		UPDATE scrape_jobs SET status = ?, result_count = ?, updated_at = ?
		WHERE key = ?`,
		models.JobStatusReady, resultCount, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("mark ready %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("Ledger: markReady for unknown key %s, skipping", key)
	}
	return nil
}

// MarkFailed records a failed fetch, same absent-key behavior as MarkReady.
func (s *LedgerStore) MarkFailed(key string) error {
	res, err := s.db.Exec(`
		UPDATE scrape_jobs SET status = ?, updated_at = ?
		WHERE key = ?`,
		models.JobStatusFailed, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("Ledger: markFailed for unknown key %s, skipping", key)
	}
	return nil
}

// IncrementAttempt atomically bumps the attempt count and re-enters running
// for the duration of the reattempt.
func (s *LedgerStore) IncrementAttempt(key string) error {
	_, err := s.db.Exec(`
		UPDATE scrape_jobs SET attempt_count = attempt_count + 1, status = ?, updated_at = ?
		WHERE key = ?`,
		models.JobStatusRunning, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("increment attempt %s: %w", key, err)
	}
	return nil
}

// ListFailed returns a snapshot of all currently failed jobs, optionally
// restricted to a source. Jobs that change status during iteration are not
// re-evaluated mid-pass.
func (s *LedgerStore) ListFailed(sourceID string) ([]models.FailedJob, error) {
	query := `SELECT key, source_id, source_url FROM scrape_jobs WHERE status = ?`
	args := []interface{}{models.JobStatusFailed}
	if sourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.FailedJob
	for rows.Next() {
		var j models.FailedJob
		var url sql.NullString
		if err := rows.Scan(&j.Key, &j.SourceID, &url); err != nil {
			return nil, err
		}
		j.SourceURL = url.String
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListReadyUnconsumed returns ready jobs not yet folded into the property
// store, for the requested run mode.
func (s *LedgerStore) ListReadyUnconsumed(initialRun bool) ([]models.ReadyJob, error) {
	rows, err := s.db.Query(`
		SELECT key, source_id, created_at FROM scrape_jobs
		WHERE status = ? AND consumed_by_ingestion = FALSE AND initial_run = ?
		ORDER BY created_at`,
		models.JobStatusReady, initialRun)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.ReadyJob
	for rows.Next() {
		var j models.ReadyJob
		if err := rows.Scan(&j.Key, &j.SourceID, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkConsumed sets the ingestion flag. Idempotent: re-marking a consumed
// job changes nothing.
func (s *LedgerStore) MarkConsumed(key string) error {
	_, err := s.db.Exec(`
		UPDATE scrape_jobs SET consumed_by_ingestion = TRUE, updated_at = ?
		WHERE key = ?`,
		time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("mark consumed %s: %w", key, err)
	}
	return nil
}

// GetJob fetches one job row, nil when the key is unknown.
func (s *LedgerStore) GetJob(key string) (*models.ScrapeJob, error) {
	row := s.db.QueryRow(`
		SELECT key, status, source_id, source_url, created_at, attempt_count,
			result_count, initial_run, consumed_by_ingestion, consumed_by_downstream
		FROM scrape_jobs WHERE key = ?`, key)

	var j models.ScrapeJob
	var url sql.NullString
	err := row.Scan(&j.Key, &j.Status, &j.SourceID, &url, &j.CreatedAt, &j.AttemptCount,
		&j.ResultCount, &j.InitialRun, &j.ConsumedByIngestion, &j.ConsumedByDownstream)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.SourceURL = url.String
	return &j, nil
}

// CountByStatus reports how many jobs currently sit in each status.
func (s *LedgerStore) CountByStatus() (map[models.JobStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM scrape_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// Pipeline runs
// =============================================================================

func (s *LedgerStore) CreateRun(run *models.PipelineRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO pipeline_runs (initial_run, started_at, status)
		VALUES (?, ?, ?)`,
		run.InitialRun, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *LedgerStore) UpdateRun(run *models.PipelineRun) error {
	_, err := s.db.Exec(`
		UPDATE pipeline_runs SET
			finished_at = ?, status = ?, jobs_created = ?, jobs_ready = ?,
			jobs_failed = ?, retries_run = ?, listings_seen = ?, properties_new = ?,
			transitions = ?, enriched = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.JobsCreated, run.JobsReady,
		run.JobsFailed, run.RetriesRun, run.ListingsSeen, run.PropertiesNew,
		run.Transitions, run.Enriched, run.ErrorsCount, run.ID)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *LedgerStore) EnqueueCommand(cmd models.CommandType, params interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, cmd, string(data))
	return err
}

func (s *LedgerStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at FROM commands
		WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = []byte(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *LedgerStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

func (s *LedgerStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, fmt.Errorf("parse command params: %w", err)
	}
	return params, nil
}
