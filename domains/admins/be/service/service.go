package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/steelworks-digital/vms-server/domains/admins/be/repo"
	platformauth "github.com/steelworks-digital/vms-server/platform/go/auth"
	"github.com/steelworks-digital/vms-server/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors. Bad username and bad password collapse into one
// sentinel so login responses cannot be used to probe for accounts.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("admin already exists")
)

// Admin represents the domain view of an admin account.
type Admin struct {
	ID        uuid.UUID
	Username  string
	Plant     *string
	CreatedAt time.Time
}

// LoginInput carries the login form fields.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult carries the signed token and its subject.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     Admin
}

// CreateInput carries the fields for provisioning a new admin account.
// A nil or blank Plant creates a super admin.
type CreateInput struct {
	Username string
	Password string
	Plant    *string
}

// Service defines the business operations for the admins domain.
type Service interface {
	Login(ctx context.Context, input LoginInput) (LoginResult, error)
	Create(ctx context.Context, input CreateInput) (Admin, error)
}

// Config carries the token signing parameters. JWTSecret is required for
// Login; account creation works without it.
type Config struct {
	JWTSecret []byte
	TokenTTL  time.Duration
	// Now is injectable for deterministic tests.
	Now func() time.Time
}

type service struct {
	repo   repo.Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New constructs an admins Service instance backed by the provided repository.
func New(r repo.Repository, cfg Config) Service {
	if r == nil {
		panic("admins repository is required")
	}
	svc := &service{
		repo:   r,
		secret: cfg.JWTSecret,
		ttl:    cfg.TokenTTL,
		now:    cfg.Now,
	}
	if svc.ttl <= 0 {
		svc.ttl = platformauth.DefaultTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func (s *service) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	record, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, persistence.ErrAdminNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(input.Password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now()
	creds := platformauth.AdminCredentials{
		ID:       record.AdminID.String(),
		Username: record.Username,
		Plant:    record.Plant,
	}
	token, err := platformauth.SignAdminToken(s.secret, creds, s.ttl, now)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		Admin:     mapAdmin(record),
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Admin, error) {
	fieldErrors := FieldErrors{}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		fieldErrors.add("username", "username is required")
	}
	if len(input.Password) < 8 {
		fieldErrors.add("password", "password must be at least 8 characters")
	}
	if len(fieldErrors) > 0 {
		return Admin{}, &ValidationError{Fields: fieldErrors}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Admin{}, err
	}

	var plant *string
	if input.Plant != nil {
		trimmed := strings.TrimSpace(*input.Plant)
		if trimmed != "" {
			plant = &trimmed
		}
	}

	record, err := s.repo.Create(ctx, persistence.CreateAdminParams{
		AdminID:      uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Plant:        plant,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrAdminConflict) {
			return Admin{}, ErrConflict
		}
		return Admin{}, err
	}

	return mapAdmin(record), nil
}

func mapAdmin(record persistence.Admin) Admin {
	return Admin{
		ID:        record.AdminID,
		Username:  record.Username,
		Plant:     record.Plant,
		CreatedAt: record.CreatedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
