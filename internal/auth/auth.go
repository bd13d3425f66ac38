// Package auth registers shoppers, checks passwords and issues the bearer
// tokens that guard admin routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid registration")
)

const (
	tokenType     = "session"
	tokenLifetime = 7 * 24 * time.Hour
	minPassword   = 8
)

// Claims is what a valid session token proves.
type Claims struct {
	UserID string
	Role   domain.Role
}

type Service struct {
	users  UserStore
	secret []byte
	cost   int
	now    func() time.Time
}

type Option func(*Service)

// WithBcryptCost lowers the hashing cost, mainly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users UserStore, secret string, opts ...Option) *Service {
	s := &Service{
		users:  users,
		secret: []byte(secret),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and returns the user with a fresh token.
func (s *Service) Register(ctx context.Context, name, email, password string, role domain.Role) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	// display names and angle brackets are dropped
	email = normalizeEmail(addr.Address)
	if len(password) < minPassword {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPassword)
	}
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("%w: role %q", ErrInvalidInput, role)
	}

	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	rec := UserRecord{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, rec); err != nil {
		return domain.User{}, err
	}

	return s.withToken(rec.User())
}

// Login checks the password and returns the user with a fresh token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	rec, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	return s.withToken(rec.User())
}

func (s *Service) ParseToken(token string) (Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims["typ"] != tokenType {
		return Claims{}, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, fmt.Errorf("%w: invalid sub", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	if !domain.Role(role).Valid() {
		return Claims{}, fmt.Errorf("%w: invalid role", ErrInvalidToken)
	}
	return Claims{UserID: sub, Role: domain.Role(role)}, nil
}

func (s *Service) withToken(u domain.User) (domain.User, error) {
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"typ":  tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenLifetime).Unix(),
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return domain.User{}, fmt.Errorf("sign token: %w", err)
	}
	u.Token = signed
	return u, nil
}
