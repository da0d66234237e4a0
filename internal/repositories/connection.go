package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

// ConnectionRepository implements [models.Repository] for [models.Connection] persistence.
//
// Credentials are stored as a JSON object in a TEXT column; each user holds
// at most one connection per provider.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new [ConnectionRepository] with the given database connection
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create inserts a new connection into the database with generated ID and sequence
func (r *ConnectionRepository) Create(connection *models.Connection) error {
	sequence, err := NextSequence(r.db, "connections")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	connection.SetID(id)

	if err := connection.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	credentials, err := json.Marshal(connection.Credentials())
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	query := `
		INSERT INTO connections (id, sequence, user_id, provider, credentials, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, connection.UserID(), connection.Provider().String(),
		string(credentials), connection.CreatedAt(), connection.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}

	return nil
}

// Get retrieves a connection by ID, excluding soft-deleted connections
func (r *ConnectionRepository) Get(id string) (*models.Connection, error) {
	query := `
		SELECT id, sequence, user_id, provider, credentials, created_at, updated_at, deleted_at
		FROM connections
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUserProvider retrieves a user's connection for a provider, excluding
// soft-deleted connections
func (r *ConnectionRepository) GetByUserProvider(userID string, provider models.Provider) (*models.Connection, error) {
	query := `
		SELECT id, sequence, user_id, provider, credentials, created_at, updated_at, deleted_at
		FROM connections
		WHERE user_id = ? AND provider = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, userID, provider.String()))
}

// Upsert stores credentials for a user and provider, replacing the existing
// connection's credential bag when one is present.
func (r *ConnectionRepository) Upsert(userID string, provider models.Provider, credentials map[string]string) (*models.Connection, error) {
	existing, err := r.GetByUserProvider(userID, provider)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}

		connection := models.NewConnection(0, userID, provider, credentials)
		if err := r.Create(connection); err != nil {
			return nil, err
		}
		return connection, nil
	}

	existing.SetCredentials(credentials)
	if err := r.Update(existing); err != nil {
		return nil, err
	}

	return existing, nil
}

// Update modifies an existing connection in the database
func (r *ConnectionRepository) Update(connection *models.Connection) error {
	if err := connection.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	connection.SetUpdatedAt(now)

	credentials, err := json.Marshal(connection.Credentials())
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	query := `
		UPDATE connections
		SET credentials = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, string(credentials), now, connection.ID())
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("connection not found or already deleted: %s: %w", connection.ID(), shared.ErrNotFound)
	}

	return nil
}

// Delete soft-deletes a connection by ID
func (r *ConnectionRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE connections
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("connection not found or already deleted: %s: %w", id, shared.ErrNotFound)
	}

	return nil
}

// List retrieves all connections matching the given criteria, excluding soft-deleted connections
func (r *ConnectionRepository) List(criteria map[string]any) ([]*models.Connection, error) {
	query := `
		SELECT id, sequence, user_id, provider, credentials, created_at, updated_at, deleted_at
		FROM connections
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if provider, ok := criteria["provider"].(string); ok && provider != "" {
		query += " AND provider = ?"
		args = append(args, provider)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		connection, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, connection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return connections, nil
}

// scanOne scans a single [sql.Row] into a [models.Connection]
func (r *ConnectionRepository) scanOne(row *sql.Row) (*models.Connection, error) {
	var (
		id          string
		sequence    int
		userID      string
		provider    string
		credentials string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &provider, &credentials, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("connection not found: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}

	return buildConnection(id, sequence, userID, provider, credentials, updatedAt, deletedAt)
}

// scanRow scans a row from [sql.Rows] into a [models.Connection]
func (r *ConnectionRepository) scanRow(rows *sql.Rows) (*models.Connection, error) {
	var (
		id          string
		sequence    int
		userID      string
		provider    string
		credentials string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &userID, &provider, &credentials, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}

	return buildConnection(id, sequence, userID, provider, credentials, updatedAt, deletedAt)
}

func buildConnection(id string, sequence int, userID, provider, credentials string, updatedAt time.Time, deletedAt sql.NullTime) (*models.Connection, error) {
	parsedProvider, err := models.ParseProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("stored connection has unknown provider %q: %w", provider, err)
	}

	bag := map[string]string{}
	if credentials != "" {
		if err := json.Unmarshal([]byte(credentials), &bag); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
		}
	}

	connection := models.NewConnection(sequence, userID, parsedProvider, bag)
	connection.SetID(id)
	connection.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		connection.SetDeletedAt(&deletedAt.Time)
	}

	return connection, nil
}
