package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_jewelry/internal/catalog"
	"github.com/fjod/go_jewelry/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

type UserRecord struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         domain.Role
	CreatedAt    time.Time
}

func (u UserRecord) User() domain.User {
	return domain.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type UserStore interface {
	CreateUser(ctx context.Context, u UserRecord) error
	UserByEmail(ctx context.Context, email string) (UserRecord, error)
}

// SQLUserStore reads and writes the users table of the catalog database.
type SQLUserStore struct {
	db *sql.DB
}

func NewSQLUserStore(db *sql.DB) *SQLUserStore {
	return &SQLUserStore{db: db}
}

func (s *SQLUserStore) CreateUser(ctx context.Context, u UserRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, normalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	if catalog.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLUserStore) UserByEmail(ctx context.Context, email string) (UserRecord, error) {
	return s.queryOne(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users
		WHERE email = ?`, normalizeEmail(email))
}

func (s *SQLUserStore) queryOne(ctx context.Context, query string, arg any) (UserRecord, error) {
	var (
		u    UserRecord
		role string
	)
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("failed to query user: %w", err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ UserStore = (*SQLUserStore)(nil)
