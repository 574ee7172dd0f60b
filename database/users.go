package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (s *DataService) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, must_change_password FROM users WHERE username = ?`,
		strings.TrimSpace(username),
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.MustChangePassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// UpsertUser creates the user or replaces the password of an existing one.
func (s *DataService) UpsertUser(ctx context.Context, username, email, passwordHash string, mustChange bool) (*User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, must_change_password)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			must_change_password = excluded.must_change_password`,
		strings.TrimSpace(username), email, passwordHash, mustChange)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUserByUsername(ctx, username)
}
