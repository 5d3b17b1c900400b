package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists entities.
type Repository interface {
	// GetByID returns ErrEntityNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*Entity, error)

	List(ctx context.Context) ([]Entity, error)

	ListByAdapter(ctx context.Context, adapterID string) ([]Entity, error)

	// Upsert inserts the entity or replaces its name, adapter, domain and
	// capabilities. Stored attributes are kept on update.
	Upsert(ctx context.Context, e *Entity) error

	// UpdateAttributes merges changes into the stored attribute map.
	// Returns ErrEntityNotFound for unknown ids.
	UpdateAttributes(ctx context.Context, id string, changes Attributes, at time.Time) error
}

// SQLiteRepository implements Repository on the entities table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT id, adapter_id, name, domain, capabilities, attributes, created_at, updated_at
	FROM entities`

// GetByID retrieves one entity.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entity, error) {
	e, err := scanEntity(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("querying entity by id: %w", err)
	}
	return e, nil
}

// List returns all entities ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entity, error) {
	return r.query(ctx, selectColumns+` ORDER BY id`)
}

// ListByAdapter returns the entities registered by one adapter.
func (r *SQLiteRepository) ListByAdapter(ctx context.Context, adapterID string) ([]Entity, error) {
	return r.query(ctx, selectColumns+` WHERE adapter_id = ? ORDER BY id`, adapterID)
}

// Upsert inserts or updates an entity by id.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *Entity) error {
	capsJSON, err := json.Marshal(e.Capabilities)
	if err != nil {
		return fmt.Errorf("marshalling capabilities: %w", err)
	}
	attrs := e.Attributes
	if attrs == nil {
		attrs = Attributes{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entities (id, adapter_id, name, domain, capabilities, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			adapter_id = excluded.adapter_id,
			name = excluded.name,
			domain = excluded.domain,
			capabilities = excluded.capabilities,
			updated_at = excluded.updated_at`,
		e.ID, e.AdapterID, e.Name, string(e.Domain),
		string(capsJSON), string(attrsJSON),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}
	return nil
}

// UpdateAttributes merges changes with json_patch so keys absent from the
// patch keep their stored value.
func (r *SQLiteRepository) UpdateAttributes(ctx context.Context, id string, changes Attributes, at time.Time) error {
	patch, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE entities
		SET attributes = json_patch(COALESCE(attributes, '{}'), ?),
		    updated_at = ?
		WHERE id = ?`,
		string(patch), at.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("updating entity attributes: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var domain, capsJSON, attrsJSON, createdAt, updatedAt string

	if err := row.Scan(&e.ID, &e.AdapterID, &e.Name, &domain, &capsJSON, &attrsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Domain = Domain(domain)

	if err := json.Unmarshal([]byte(capsJSON), &e.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshalling capabilities: %w", err)
	}
	if err := json.Unmarshal([]byte(attrsJSON), &e.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshalling attributes: %w", err)
	}
	if e.Attributes == nil {
		e.Attributes = Attributes{}
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}
