// Package repository implements SQL-backed persistence for audit runs.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"genie-audit/internal/domain"
)

// RunRepo persists audit run snapshots. Writes go through the single-conn
// write pool; list and point reads use the read pool.
type RunRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

var _ domain.RunRepository = (*RunRepo)(nil)

func NewRunRepo(writeDB, readDB *sql.DB) *RunRepo {
	return &RunRepo{writeDB: writeDB, readDB: readDB}
}

// SaveRun stores a run snapshot. Assigns an ID when the run has none.
func (r *RunRepo) SaveRun(ctx context.Context, run *domain.AuditRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Report == nil {
		return domain.ErrValidation("run report is required")
	}

	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = r.writeDB.ExecContext(ctx, `
		INSERT INTO audit_runs (id, space_id, window_hours, started_at, finished_at,
		                        conversation_count, query_count, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SpaceID, run.WindowHours,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.ConversationCount, run.QueryCount, string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("insert audit run: %w", err)
	}
	return nil
}

// GetRun loads one run snapshot by ID, including the full report.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.AuditRun, error) {
	row := r.readDB.QueryRowContext(ctx, `
		SELECT id, space_id, window_hours, started_at, finished_at,
		       conversation_count, query_count, report_json
		FROM audit_runs WHERE id = ?`, id)

	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("audit run %s not found", id)
	}
	return run, err
}

// LatestRun loads the most recent run for a space, including the full report.
func (r *RunRepo) LatestRun(ctx context.Context, spaceID string) (*domain.AuditRun, error) {
	row := r.readDB.QueryRowContext(ctx, `
		SELECT id, space_id, window_hours, started_at, finished_at,
		       conversation_count, query_count, report_json
		FROM audit_runs WHERE space_id = ?
		ORDER BY started_at DESC LIMIT 1`, spaceID)

	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("no audit runs for space %s", spaceID)
	}
	return run, err
}

// ListRuns returns run metadata newest first, without report payloads.
func (r *RunRepo) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.AuditRun, int64, error) {
	var spaceFilter interface{}
	if filter.SpaceID != nil {
		spaceFilter = *filter.SpaceID
	}

	limit := filter.Page.Limit()
	offset := filter.Page.Offset()

	var total int64
	err := r.readDB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_runs
		WHERE (? IS NULL OR space_id = ?)`, spaceFilter, spaceFilter).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit runs: %w", err)
	}

	rows, err := r.readDB.QueryContext(ctx, `
		SELECT id, space_id, window_hours, started_at, finished_at,
		       conversation_count, query_count, ''
		FROM audit_runs
		WHERE (? IS NULL OR space_id = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, spaceFilter, spaceFilter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.AuditRun
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit runs: %w", err)
	}

	return runs, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner, withReport bool) (*domain.AuditRun, error) {
	var (
		run        domain.AuditRun
		startedAt  string
		finishedAt string
		reportJSON string
	)
	err := row.Scan(&run.ID, &run.SpaceID, &run.WindowHours, &startedAt, &finishedAt,
		&run.ConversationCount, &run.QueryCount, &reportJSON)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}

	if withReport && reportJSON != "" {
		var report domain.SpaceReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		run.Report = &report
	}
	return &run, nil
}
