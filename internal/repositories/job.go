package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

// JobRepository implements [models.Repository] for [models.ImportJob] persistence.
//
// Handles import job CRUD with soft delete support, status-guarded
// transitions, and the persisted completion report.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new [JobRepository] with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new import job into the database with generated ID and sequence
func (r *JobRepository) Create(job *models.ImportJob) error {
	sequence, err := NextSequence(r.db, "import_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO import_jobs (
			id, sequence, user_id, source_provider, source_playlist_id,
			source_playlist_name, target_provider, target_playlist_id, status,
			total_tracks, error_message, report, started_at, completed_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	report, err := marshalReport(job.Report())
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query,
		id,
		sequence,
		job.UserID(),
		job.SourceProvider().String(),
		job.SourcePlaylistID(),
		job.SourcePlaylistName(),
		job.TargetProvider().String(),
		nullString(job.TargetPlaylistID()),
		string(job.Status()),
		job.TotalTracks(),
		nullString(job.ErrorMessage()),
		report,
		job.StartedAt(),
		job.CompletedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import job: %w", err)
	}

	return nil
}

// Get retrieves an import job by ID, excluding soft-deleted jobs
func (r *JobRepository) Get(id string) (*models.ImportJob, error) {
	query := `
		SELECT
			id, sequence, user_id, source_provider, source_playlist_id,
			source_playlist_name, target_provider, target_playlist_id, status,
			total_tracks, error_message, report, started_at, completed_at,
			created_at, updated_at, deleted_at
		FROM import_jobs
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// TransitionStatus moves a job from one status to another with a
// compare-and-set update. Returns [shared.ErrInvalidTransition] when the
// edge is not allowed or when the stored status no longer matches from.
func (r *JobRepository) TransitionStatus(id string, from, to models.JobStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%s cannot move to %s: %w", from, to, shared.ErrInvalidTransition)
	}

	query := `
		UPDATE import_jobs
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, string(to), time.Now(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to transition import job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		current, getErr := r.Get(id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("job %s is %s, not %s: %w", id, current.Status(), from, shared.ErrInvalidTransition)
	}

	return nil
}

// Update modifies an existing import job in the database
func (r *JobRepository) Update(job *models.ImportJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE import_jobs
		SET source_playlist_name = ?, target_playlist_id = ?, status = ?,
			total_tracks = ?, error_message = ?, report = ?, started_at = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	report, err := marshalReport(job.Report())
	if err != nil {
		return err
	}

	result, err := r.db.Exec(query,
		job.SourcePlaylistName(),
		nullString(job.TargetPlaylistID()),
		string(job.Status()),
		job.TotalTracks(),
		nullString(job.ErrorMessage()),
		report,
		job.StartedAt(),
		job.CompletedAt(),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update import job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("import job not found or already deleted: %s: %w", job.ID(), shared.ErrNotFound)
	}

	return nil
}

// Delete soft-deletes an import job by ID
func (r *JobRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE import_jobs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete import job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("import job not found or already deleted: %s: %w", id, shared.ErrNotFound)
	}

	return nil
}

// List retrieves all import jobs matching the given criteria, excluding soft-deleted jobs
func (r *JobRepository) List(criteria map[string]any) ([]*models.ImportJob, error) {
	query := `
		SELECT
			id, sequence, user_id, source_provider, source_playlist_id,
			source_playlist_name, target_provider, target_playlist_id, status,
			total_tracks, error_message, report, started_at, completed_at,
			created_at, updated_at, deleted_at
		FROM import_jobs
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if sourceProvider, ok := criteria["source_provider"].(string); ok && sourceProvider != "" {
		query += " AND source_provider = ?"
		args = append(args, sourceProvider)
	}

	if targetProvider, ok := criteria["target_provider"].(string); ok && targetProvider != "" {
		query += " AND target_provider = ?"
		args = append(args, targetProvider)
	}

	query += " ORDER BY sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	for rows.Next() {
		job, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// scanOne scans a single [sql.Row] into a [models.ImportJob]
func (r *JobRepository) scanOne(row *sql.Row) (*models.ImportJob, error) {
	var (
		id                 string
		sequence           int
		userID             string
		sourceProvider     string
		sourcePlaylistID   string
		sourcePlaylistName string
		targetProvider     string
		targetPlaylistID   sql.NullString
		status             string
		totalTracks        int
		errorMessage       sql.NullString
		report             sql.NullString
		startedAt          sql.NullTime
		completedAt        sql.NullTime
		createdAt          time.Time
		updatedAt          time.Time
		deletedAt          sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &userID, &sourceProvider, &sourcePlaylistID,
		&sourcePlaylistName, &targetProvider, &targetPlaylistID, &status,
		&totalTracks, &errorMessage, &report, &startedAt, &completedAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("import job not found: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import job: %w", err)
	}

	return buildJob(id, sequence, userID, sourceProvider, sourcePlaylistID,
		sourcePlaylistName, targetProvider, targetPlaylistID, status, totalTracks,
		errorMessage, report, startedAt, completedAt, updatedAt, deletedAt)
}

// scanRow scans a row from [sql.Rows] into a [models.ImportJob]
func (r *JobRepository) scanRow(rows *sql.Rows) (*models.ImportJob, error) {
	var (
		id                 string
		sequence           int
		userID             string
		sourceProvider     string
		sourcePlaylistID   string
		sourcePlaylistName string
		targetProvider     string
		targetPlaylistID   sql.NullString
		status             string
		totalTracks        int
		errorMessage       sql.NullString
		report             sql.NullString
		startedAt          sql.NullTime
		completedAt        sql.NullTime
		createdAt          time.Time
		updatedAt          time.Time
		deletedAt          sql.NullTime
	)

	err := rows.Scan(
		&id, &sequence, &userID, &sourceProvider, &sourcePlaylistID,
		&sourcePlaylistName, &targetProvider, &targetPlaylistID, &status,
		&totalTracks, &errorMessage, &report, &startedAt, &completedAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan import job: %w", err)
	}

	return buildJob(id, sequence, userID, sourceProvider, sourcePlaylistID,
		sourcePlaylistName, targetProvider, targetPlaylistID, status, totalTracks,
		errorMessage, report, startedAt, completedAt, updatedAt, deletedAt)
}

// buildJob reconstructs a [models.ImportJob] from scanned columns.
func buildJob(
	id string, sequence int, userID, sourceProvider, sourcePlaylistID,
	sourcePlaylistName, targetProvider string, targetPlaylistID sql.NullString,
	status string, totalTracks int, errorMessage, report sql.NullString,
	startedAt, completedAt sql.NullTime, updatedAt time.Time, deletedAt sql.NullTime,
) (*models.ImportJob, error) {
	source, err := models.ParseProvider(sourceProvider)
	if err != nil {
		return nil, fmt.Errorf("stored job has unknown source provider %q: %w", sourceProvider, err)
	}
	target, err := models.ParseProvider(targetProvider)
	if err != nil {
		return nil, fmt.Errorf("stored job has unknown target provider %q: %w", targetProvider, err)
	}

	job := models.NewImportJob(sequence, userID, source, sourcePlaylistID, target)
	job.SetID(id)
	job.SetUpdatedAt(updatedAt)
	job.SetSourcePlaylistName(sourcePlaylistName)
	job.SetStatus(models.JobStatus(status))
	job.SetTotalTracks(totalTracks)

	if targetPlaylistID.Valid {
		job.SetTargetPlaylistID(targetPlaylistID.String)
	}
	if errorMessage.Valid {
		job.SetErrorMessage(errorMessage.String)
	}
	if report.Valid && report.String != "" {
		var parsed models.ImportReport
		if err := json.Unmarshal([]byte(report.String), &parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		job.SetReport(&parsed)
	}
	if startedAt.Valid {
		job.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		job.SetDeletedAt(&deletedAt.Time)
	}

	return job, nil
}

func marshalReport(report *models.ImportReport) (any, error) {
	if report == nil {
		return nil, nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}

// nullString maps empty strings to NULL for nullable TEXT columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
