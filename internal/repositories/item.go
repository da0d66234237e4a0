package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

// ItemRepository implements [models.Repository] for [models.ImportItem] persistence.
//
// The source track and its candidate list are stored as JSON in TEXT
// columns; items are unique per (job, position) and listed in playlist order.
type ItemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new [ItemRepository] with the given database connection
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new import item into the database with generated ID and sequence
func (r *ItemRepository) Create(item *models.ImportItem) error {
	sequence, err := NextSequence(r.db, "import_items")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	item.SetID(id)

	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	track, err := json.Marshal(item.Track())
	if err != nil {
		return fmt.Errorf("failed to marshal source track: %w", err)
	}

	candidates, err := marshalCandidates(item.Candidates())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO import_items (
			id, sequence, job_id, position, source_track, candidates,
			best_candidate_id, override_candidate_id, score, status,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		item.JobID(),
		item.Position(),
		string(track),
		candidates,
		nullString(item.BestCandidateID()),
		nullString(item.OverrideCandidateID()),
		item.Score(),
		string(item.Status()),
		item.CreatedAt(),
		item.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import item: %w", err)
	}

	return nil
}

// Get retrieves an import item by ID, excluding soft-deleted items
func (r *ItemRepository) Get(id string) (*models.ImportItem, error) {
	query := `
		SELECT
			id, sequence, job_id, position, source_track, candidates,
			best_candidate_id, override_candidate_id, score, status,
			created_at, updated_at, deleted_at
		FROM import_items
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// Update modifies an existing import item in the database
func (r *ItemRepository) Update(item *models.ImportItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	item.SetUpdatedAt(now)

	candidates, err := marshalCandidates(item.Candidates())
	if err != nil {
		return err
	}

	query := `
		UPDATE import_items
		SET candidates = ?, best_candidate_id = ?, override_candidate_id = ?,
			score = ?, status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		candidates,
		nullString(item.BestCandidateID()),
		nullString(item.OverrideCandidateID()),
		item.Score(),
		string(item.Status()),
		now,
		item.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update import item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("import item not found or already deleted: %s: %w", item.ID(), shared.ErrNotFound)
	}

	return nil
}

// Delete soft-deletes an import item by ID
func (r *ItemRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE import_items
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete import item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("import item not found or already deleted: %s: %w", id, shared.ErrNotFound)
	}

	return nil
}

// List retrieves all import items matching the given criteria in playlist
// order, excluding soft-deleted items
func (r *ItemRepository) List(criteria map[string]any) ([]*models.ImportItem, error) {
	query := `
		SELECT
			id, sequence, job_id, position, source_track, candidates,
			best_candidate_id, override_candidate_id, score, status,
			created_at, updated_at, deleted_at
		FROM import_items
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if jobID, ok := criteria["job_id"].(string); ok && jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY position ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import items: %w", err)
	}
	defer rows.Close()

	var items []*models.ImportItem
	for rows.Next() {
		item, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// ListByJob retrieves a job's items in playlist order
func (r *ItemRepository) ListByJob(jobID string) ([]*models.ImportItem, error) {
	return r.List(map[string]any{"job_id": jobID})
}

// CountByStatus tallies a job's items per status for summary views
func (r *ItemRepository) CountByStatus(jobID string) (map[models.ItemStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM import_items
		WHERE job_id = ? AND deleted_at IS NULL
		GROUP BY status
	`

	rows, err := r.db.Query(query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count import items: %w", err)
	}
	defer rows.Close()

	counts := map[models.ItemStatus]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan item count: %w", err)
		}
		counts[models.ItemStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

// scanOne scans a single [sql.Row] into a [models.ImportItem]
func (r *ItemRepository) scanOne(row *sql.Row) (*models.ImportItem, error) {
	var (
		id                  string
		sequence            int
		jobID               string
		position            int
		sourceTrack         string
		candidates          sql.NullString
		bestCandidateID     sql.NullString
		overrideCandidateID sql.NullString
		score               float64
		status              string
		createdAt           time.Time
		updatedAt           time.Time
		deletedAt           sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &jobID, &position, &sourceTrack, &candidates,
		&bestCandidateID, &overrideCandidateID, &score, &status,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("import item not found: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import item: %w", err)
	}

	return buildItem(id, sequence, jobID, position, sourceTrack, candidates,
		bestCandidateID, overrideCandidateID, score, status, updatedAt, deletedAt)
}

// scanRow scans a row from [sql.Rows] into a [models.ImportItem]
func (r *ItemRepository) scanRow(rows *sql.Rows) (*models.ImportItem, error) {
	var (
		id                  string
		sequence            int
		jobID               string
		position            int
		sourceTrack         string
		candidates          sql.NullString
		bestCandidateID     sql.NullString
		overrideCandidateID sql.NullString
		score               float64
		status              string
		createdAt           time.Time
		updatedAt           time.Time
		deletedAt           sql.NullTime
	)

	err := rows.Scan(
		&id, &sequence, &jobID, &position, &sourceTrack, &candidates,
		&bestCandidateID, &overrideCandidateID, &score, &status,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan import item: %w", err)
	}

	return buildItem(id, sequence, jobID, position, sourceTrack, candidates,
		bestCandidateID, overrideCandidateID, score, status, updatedAt, deletedAt)
}

// buildItem reconstructs a [models.ImportItem] from scanned columns.
func buildItem(
	id string, sequence int, jobID string, position int, sourceTrack string,
	candidates, bestCandidateID, overrideCandidateID sql.NullString,
	score float64, status string, updatedAt time.Time, deletedAt sql.NullTime,
) (*models.ImportItem, error) {
	var track models.SourceTrack
	if err := json.Unmarshal([]byte(sourceTrack), &track); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source track: %w", err)
	}

	item := models.NewImportItem(sequence, jobID, position, track)
	item.SetID(id)
	item.SetUpdatedAt(updatedAt)
	item.SetScore(score)
	item.SetStatus(models.ItemStatus(status))

	if candidates.Valid && candidates.String != "" {
		var parsed []models.Candidate
		if err := json.Unmarshal([]byte(candidates.String), &parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidates: %w", err)
		}
		item.SetCandidates(parsed)
	}
	if bestCandidateID.Valid {
		item.SetBestCandidateID(bestCandidateID.String)
	}
	if overrideCandidateID.Valid {
		item.SetOverrideCandidateID(overrideCandidateID.String)
	}
	if deletedAt.Valid {
		item.SetDeletedAt(&deletedAt.Time)
	}

	return item, nil
}

// marshalCandidates serializes a candidate list, mapping empty lists to NULL.
func marshalCandidates(candidates []models.Candidate) (any, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal candidates: %w", err)
	}
	return string(data), nil
}
