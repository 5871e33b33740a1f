package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"foodcost/api/models"
)

// ErrUsernameTaken is returned when creating an admin whose username exists.
var ErrUsernameTaken = errors.New("username already exists")

type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore instance.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateAdmin inserts a new operator account.
func (s *UserStore) CreateAdmin(ctx context.Context, username string, passwordHash []byte) (*models.AdminUser, error) {
	user := &models.AdminUser{}
	query := `
		INSERT INTO admin_users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, created_at;
	`
	err := s.db.QueryRowContext(ctx, query, username, string(passwordHash)).Scan(
		&user.ID,
		&user.Username,
		&user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("Admin user created")
	return user, nil
}

func (s *UserStore) GetAdminByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	user := &models.AdminUser{}
	var hash string
	query := `
		SELECT id, username, password_hash, created_at
		FROM admin_users
		WHERE username = $1;
	`
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&hash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	user.PasswordHash = []byte(hash)

	return user, nil
}
