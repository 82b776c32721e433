package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
	"github.com/resourcehub/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT id, COALESCE(name, ''), COALESCE(email, ''), status, data, scopes, COALESCE(hashed_password, '')
		FROM users
		WHERE id = $1`
	var user types.User
	var dataJSON, scopesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Status,
		&dataJSON,
		&scopesJSON,
		&user.HashedPassword,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}

	_ = json.Unmarshal(dataJSON, &user.Data)
	_ = json.Unmarshal(scopesJSON, &user.Scopes)
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	dataJSON, err := json.Marshal(user.Data)
	if err != nil {
		return types.User{}, err
	}
	scopesJSON, err := json.Marshal(user.Scopes)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (id, name, email, status, data, scopes, hashed_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.Status,
		dataJSON,
		scopesJSON,
		user.HashedPassword,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return types.User{}, ErrAlreadyExists
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	dataJSON, err := json.Marshal(user.Data)
	if err != nil {
		return types.User{}, err
	}
	scopesJSON, err := json.Marshal(user.Scopes)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		UPDATE users
		SET name = $1,
			email = $2,
			status = $3,
			data = $4,
			scopes = $5,
			hashed_password = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.Status,
		dataJSON,
		scopesJSON,
		user.HashedPassword,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}
