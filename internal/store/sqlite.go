package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Art-of-X/sparkworks/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			task TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sparks (
			spark_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			method_tags TEXT,
			competency_tags TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (project_id) REFERENCES projects(project_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sparks_project ON sparks(project_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS context_items (
			item_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (project_id) REFERENCES projects(project_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_context_items_project ON context_items(project_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			summary TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME,
			FOREIGN KEY (project_id) REFERENCES projects(project_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project_status ON runs(project_id, status)`,
		`CREATE TABLE IF NOT EXISTS run_events (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS outputs (
			output_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			spark_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			title TEXT NOT NULL,
			text TEXT NOT NULL,
			cover_svg TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (project_id) REFERENCES projects(project_id) ON DELETE CASCADE,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outputs_project ON outputs(project_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_outputs_run ON outputs(run_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProject creates a new project.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (project_id, user_id, task, created_at) VALUES (?, ?, ?, ?)`,
		project.ProjectID, project.UserID, project.Task, project.CreatedAt)
	return err
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, user_id, task, created_at FROM projects WHERE project_id = ?`,
		projectID).Scan(&p.ProjectID, &p.UserID, &p.Task, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProjectTask updates the task text of a project.
func (s *SQLiteStore) UpdateProjectTask(ctx context.Context, projectID, task string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET task = ? WHERE project_id = ?`, task, projectID)
	return err
}

// DeleteProject deletes a project; sparks, context items, runs, events and
// outputs cascade.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE project_id = ?`, projectID)
	return err
}

// CreateSpark creates a new spark.
func (s *SQLiteStore) CreateSpark(ctx context.Context, spark *domain.Spark) error {
	methodTags, _ := json.Marshal(spark.MethodTags)
	competencyTags, _ := json.Marshal(spark.CompetencyTags)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sparks (spark_id, project_id, name, system_prompt, method_tags, competency_tags, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		spark.SparkID, spark.ProjectID, spark.Name, spark.SystemPrompt, string(methodTags), string(competencyTags), spark.CreatedAt)
	return err
}

// ListSparks retrieves the sparks attached to a project in attachment order.
func (s *SQLiteStore) ListSparks(ctx context.Context, projectID string) ([]domain.Spark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spark_id, project_id, name, system_prompt, method_tags, competency_tags, created_at FROM sparks WHERE project_id = ? ORDER BY created_at ASC, spark_id ASC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sparks []domain.Spark
	for rows.Next() {
		var sp domain.Spark
		var methodTags, competencyTags sql.NullString
		if err := rows.Scan(&sp.SparkID, &sp.ProjectID, &sp.Name, &sp.SystemPrompt, &methodTags, &competencyTags, &sp.CreatedAt); err != nil {
			return nil, err
		}
		if methodTags.Valid && methodTags.String != "" {
			if err := json.Unmarshal([]byte(methodTags.String), &sp.MethodTags); err != nil {
				return nil, fmt.Errorf("failed to decode method tags for spark %s: %w", sp.SparkID, err)
			}
		}
		if competencyTags.Valid && competencyTags.String != "" {
			if err := json.Unmarshal([]byte(competencyTags.String), &sp.CompetencyTags); err != nil {
				return nil, fmt.Errorf("failed to decode competency tags for spark %s: %w", sp.SparkID, err)
			}
		}
		sparks = append(sparks, sp)
	}
	return sparks, rows.Err()
}

// CreateContextItem creates a new owner-supplied context item.
func (s *SQLiteStore) CreateContextItem(ctx context.Context, item *domain.ContextItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO context_items (item_id, project_id, kind, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.ItemID, item.ProjectID, item.Kind, item.Text, item.CreatedAt)
	return err
}

// ListContextItems retrieves the context items of a project.
func (s *SQLiteStore) ListContextItems(ctx context.Context, projectID string) ([]domain.ContextItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, project_id, kind, text, created_at FROM context_items WHERE project_id = ? ORDER BY created_at ASC, item_id ASC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ContextItem
	for rows.Next() {
		var it domain.ContextItem
		if err := rows.Scan(&it.ItemID, &it.ProjectID, &it.Kind, &it.Text, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, project_id, user_id, status, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ProjectID, run.UserID, run.Status, run.Summary, run.CreatedAt)
	return err
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var summary sql.NullString
	var finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, project_id, user_id, status, summary, created_at, finished_at FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.ProjectID, &run.UserID, &run.Status, &summary, &run.CreatedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if summary.Valid {
		run.Summary = summary.String
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// CountRuns counts the historical runs of a project, any status.
func (s *SQLiteStore) CountRuns(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE project_id = ?`, projectID).Scan(&count)
	return count, err
}

// LatestRunningRun retrieves the most recent run with status=running for a
// project, or nil if none.
func (s *SQLiteStore) LatestRunningRun(ctx context.Context, projectID string) (*domain.Run, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs WHERE project_id = ? AND status = ? ORDER BY created_at DESC, run_id DESC LIMIT 1`,
		projectID, domain.RunStatusRunning).Scan(&runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetRun(ctx, runID)
}

// FinishRun transitions a run to a terminal status with a summary.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status domain.RunStatus, summary string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE run_id = ?`,
		status, summary, finishedAt, runID)
	return err
}

// AppendEvent appends the next event to a run's log. The sequence number is
// assigned inside a transaction; the orchestration task is the only writer
// for a given run, so MAX(seq)+1 is gapless.
func (s *SQLiteStore) AppendEvent(ctx context.Context, runID string, eventType domain.EventType, payload []byte) (*domain.RunEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM run_events WHERE run_id = ?`, runID).Scan(&seq); err != nil {
		return nil, err
	}

	event := &domain.RunEvent{
		RunID:     runID,
		Seq:       seq,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, seq, type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.RunID, event.Seq, event.Type, string(payload), event.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return event, nil
}

// TailEvents retrieves events with seq > afterSeq in ascending seq order.
func (s *SQLiteStore) TailEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.RunEvent, error) {
	query := `SELECT run_id, seq, type, payload, created_at FROM run_events WHERE run_id = ? AND seq > ? ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, runID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RunEvent
	for rows.Next() {
		var e domain.RunEvent
		var payload sql.NullString
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateOutput creates a new output.
func (s *SQLiteStore) CreateOutput(ctx context.Context, output *domain.Output) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outputs (output_id, project_id, spark_id, run_id, title, text, cover_svg, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		output.OutputID, output.ProjectID, output.SparkID, output.RunID, output.Title, output.Text, output.CoverSVG, output.CreatedAt)
	return err
}

// SetOutputCover attaches a cover to an existing output.
func (s *SQLiteStore) SetOutputCover(ctx context.Context, outputID, coverSVG string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outputs SET cover_svg = ? WHERE output_id = ?`, coverSVG, outputID)
	return err
}

// ListOutputs retrieves the outputs of a project.
func (s *SQLiteStore) ListOutputs(ctx context.Context, projectID string) ([]domain.Output, error) {
	return s.listOutputs(ctx, `project_id`, projectID)
}

// ListRunOutputs retrieves the outputs created by a single run.
func (s *SQLiteStore) ListRunOutputs(ctx context.Context, runID string) ([]domain.Output, error) {
	return s.listOutputs(ctx, `run_id`, runID)
}

func (s *SQLiteStore) listOutputs(ctx context.Context, column, value string) ([]domain.Output, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT output_id, project_id, spark_id, run_id, title, text, cover_svg, created_at FROM outputs WHERE `+column+` = ? ORDER BY created_at ASC, output_id ASC`,
		value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outputs []domain.Output
	for rows.Next() {
		var o domain.Output
		var cover sql.NullString
		if err := rows.Scan(&o.OutputID, &o.ProjectID, &o.SparkID, &o.RunID, &o.Title, &o.Text, &cover, &o.CreatedAt); err != nil {
			return nil, err
		}
		if cover.Valid {
			o.CoverSVG = cover.String
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
