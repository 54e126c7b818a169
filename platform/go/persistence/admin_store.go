package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const AdminsTable = "admins"

// Admin represents a row in the admins table. Plant is nil for super admins.
type Admin struct {
	AdminID      uuid.UUID `db:"admin_id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Plant        *string   `db:"plant"`
	CreatedAt    time.Time `db:"created_at"`
}

var (
	// ErrAdminNotFound indicates a missing admin record.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrAdminConflict indicates a duplicated username.
	ErrAdminConflict = errors.New("admin conflict")
)

// AdminStore exposes persistence helpers for the admins table.
type AdminStore struct {
	pool *pgxpool.Pool
}

// NewAdminStore returns a store instance bound to the shared pool.
func NewAdminStore(pool *pgxpool.Pool) (*AdminStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AdminStore{pool: pool}, nil
}

// CreateAdminParams captures the fields required to insert a new admin record.
type CreateAdminParams struct {
	AdminID      uuid.UUID
	Username     string
	PasswordHash string
	Plant        *string
}

// CreateAdmin inserts a new admin and returns the persisted record.
func (s *AdminStore) CreateAdmin(ctx context.Context, params CreateAdminParams) (Admin, error) {
	if params.AdminID == uuid.Nil {
		return Admin{}, errors.New("admin id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (admin_id, username, password_hash, plant)
        VALUES ($1, $2, $3, $4)
        RETURNING admin_id, username, password_hash, plant, created_at
    `, AdminsTable),
		params.AdminID,
		strings.TrimSpace(params.Username),
		params.PasswordHash,
		params.Plant,
	)

	admin, err := scanAdmin(row)
	if err != nil {
		if isUniqueViolation(err, "") {
			return Admin{}, ErrAdminConflict
		}
		return Admin{}, fmt.Errorf("insert admin: %w", err)
	}
	return admin, nil
}

// GetAdminByUsername returns the admin matching the username.
func (s *AdminStore) GetAdminByUsername(ctx context.Context, username string) (Admin, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT admin_id, username, password_hash, plant, created_at
        FROM %s WHERE username = $1
    `, AdminsTable), strings.TrimSpace(username))

	admin, err := scanAdmin(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Admin{}, ErrAdminNotFound
		}
		return Admin{}, fmt.Errorf("get admin: %w", err)
	}
	return admin, nil
}

func scanAdmin(row pgx.Row) (Admin, error) {
	var a Admin
	if err := row.Scan(&a.AdminID, &a.Username, &a.PasswordHash, &a.Plant, &a.CreatedAt); err != nil {
		return Admin{}, err
	}
	return a, nil
}
