package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"

	"github.com/mattn/go-sqlite3"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (username, first_name, last_name, email, password_hash, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		now,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, first_name, last_name, email, password_hash, created_at, updated_at
              FROM users WHERE username = ?`
	return db.queryUser(ctx, query, username)
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, first_name, last_name, email, password_hash, created_at, updated_at
              FROM users WHERE id = ?`
	return db.queryUser(ctx, query, id)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email,
		&user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}
