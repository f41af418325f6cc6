package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dev/bravebird/airline-entry/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

const schema = `
CREATE TABLE IF NOT EXISTS entry_runs (
	id                   VARCHAR(64)  NOT NULL PRIMARY KEY,
	temporal_workflow_id VARCHAR(255) NOT NULL DEFAULT '',
	temporal_run_id      VARCHAR(255) NOT NULL DEFAULT '',
	status               VARCHAR(32)  NOT NULL,
	parameters           JSON         NOT NULL,
	phase_results        JSON         NULL,
	screenshot_path      VARCHAR(1024) NOT NULL DEFAULT '',
	html_path            VARCHAR(1024) NOT NULL DEFAULT '',
	error_message        TEXT         NULL,
	created_at           DATETIME(3)  NOT NULL,
	completed_at         DATETIME(3)  NULL,
	INDEX idx_entry_runs_created_at (created_at)
)`

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// ==================== Entry Runs ====================

// CreateRun inserts a new run record
func (db *DB) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO entry_runs (id, temporal_workflow_id, temporal_run_id, status, parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.TemporalWorkflowID,
		run.TemporalRunID,
		run.Status,
		run.ParametersJSON,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SetTemporalIDs records which Temporal execution serves the run
func (db *DB) SetTemporalIDs(ctx context.Context, id, workflowID, runID string) error {
	query := `
		UPDATE entry_runs
		SET temporal_workflow_id = ?, temporal_run_id = ?, status = ?
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, workflowID, runID, models.StatusRunning, id)
	return err
}

// GetRun retrieves a run by ID. It returns nil, nil when the run is unknown.
func (db *DB) GetRun(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, temporal_workflow_id, temporal_run_id, status, parameters,
		       phase_results, screenshot_path, html_path, error_message,
		       created_at, completed_at
		FROM entry_runs
		WHERE id = ?
	`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	query := `
		SELECT id, temporal_workflow_id, temporal_run_id, status, parameters,
		       phase_results, screenshot_path, html_path, error_message,
		       created_at, completed_at
		FROM entry_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// UpdateRunStatus updates the status of a run
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE entry_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW(3) ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, id)
	return err
}

// SaveResult stores the final outcome of a run
func (db *DB) SaveResult(ctx context.Context, result models.RunResult) error {
	phasesJSON, err := json.Marshal(result.Phases)
	if err != nil {
		return fmt.Errorf("failed to encode phases: %w", err)
	}

	var screenshotPath, htmlPath string
	if result.Snapshot != nil {
		screenshotPath = result.Snapshot.ScreenshotPath
		htmlPath = result.Snapshot.HTMLPath
	}

	query := `
		UPDATE entry_runs
		SET status = ?, phase_results = ?, screenshot_path = ?, html_path = ?,
		    error_message = ?, completed_at = NOW(3)
		WHERE id = ?
	`

	_, err = db.conn.ExecContext(ctx, query,
		result.Status,
		string(phasesJSON),
		screenshotPath,
		htmlPath,
		result.ErrorMessage,
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run        models.Run
		phasesJSON sql.NullString
		errMsg     sql.NullString
		completed  sql.NullTime
	)

	err := row.Scan(
		&run.ID,
		&run.TemporalWorkflowID,
		&run.TemporalRunID,
		&run.Status,
		&run.ParametersJSON,
		&phasesJSON,
		&run.ScreenshotPath,
		&run.HTMLPath,
		&errMsg,
		&run.CreatedAt,
		&completed,
	)
	if err != nil {
		return nil, err
	}

	run.PhasesJSON = phasesJSON.String
	run.ErrorMessage = errMsg.String
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	if err := Expand(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Expand decodes the JSON columns of run into its computed fields
func Expand(run *models.Run) error {
	if run.ParametersJSON != "" {
		var params models.SearchParams
		if err := json.Unmarshal([]byte(run.ParametersJSON), &params); err != nil {
			return fmt.Errorf("failed to decode parameters of run %s: %w", run.ID, err)
		}
		run.Params = &params
	}
	if run.PhasesJSON != "" {
		var phases []models.PhaseResult
		if err := json.Unmarshal([]byte(run.PhasesJSON), &phases); err != nil {
			return fmt.Errorf("failed to decode phases of run %s: %w", run.ID, err)
		}
		run.Phases = phases
	}
	return nil
}
