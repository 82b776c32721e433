package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/resourcehub/apiserver/types"
)

// ResourceRepository handles persistence for resources.
type ResourceRepository struct {
	db *sql.DB
}

func NewResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) List(ctx context.Context, offset, limit int) ([]types.Resource, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}

	const query = `
		SELECT id, name, data
		FROM resources
		ORDER BY name, id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]types.Resource, 0, limit)
	for rows.Next() {
		var resource types.Resource
		var dataJSON []byte
		if err := rows.Scan(&resource.ID, &resource.Name, &dataJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(dataJSON, &resource.Data)
		resources = append(resources, resource)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return resources, nil
}

func (r *ResourceRepository) Get(ctx context.Context, id uuid.UUID) (types.Resource, error) {
	const query = `SELECT id, name, data FROM resources WHERE id = $1`
	var resource types.Resource
	var dataJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&resource.ID, &resource.Name, &dataJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Resource{}, ErrNotFound
		}
		return types.Resource{}, err
	}

	_ = json.Unmarshal(dataJSON, &resource.Data)
	return resource, nil
}

func (r *ResourceRepository) Create(ctx context.Context, resource types.Resource) (types.Resource, error) {
	dataJSON, err := json.Marshal(resource.Data)
	if err != nil {
		return types.Resource{}, err
	}

	const query = `INSERT INTO resources (id, name, data) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, resource.ID, resource.Name, dataJSON); err != nil {
		return types.Resource{}, err
	}
	return resource, nil
}

// Upsert replaces the resource row, inserting it when absent. Used by
// the PUT handler, which assigns the id from the request path.
func (r *ResourceRepository) Upsert(ctx context.Context, resource types.Resource) (types.Resource, error) {
	dataJSON, err := json.Marshal(resource.Data)
	if err != nil {
		return types.Resource{}, err
	}

	const query = `
		INSERT INTO resources (id, name, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data`
	if _, err := r.db.ExecContext(ctx, query, resource.ID, resource.Name, dataJSON); err != nil {
		return types.Resource{}, err
	}
	return resource, nil
}

func (r *ResourceRepository) Update(ctx context.Context, resource types.Resource) (types.Resource, error) {
	dataJSON, err := json.Marshal(resource.Data)
	if err != nil {
		return types.Resource{}, err
	}

	const query = `UPDATE resources SET name = $1, data = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, resource.Name, dataJSON, resource.ID)
	if err != nil {
		return types.Resource{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Resource{}, err
	}
	if affected == 0 {
		return types.Resource{}, ErrNotFound
	}
	return resource, nil
}

func (r *ResourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM resources WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
