package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	platformauth "github.com/steelworks-digital/vms-server/platform/go/auth"
	"github.com/steelworks-digital/vms-server/platform/go/persistence"
)

type mockRepository struct {
	createFn        func(ctx context.Context, params persistence.CreateAdminParams) (persistence.Admin, error)
	getByUsernameFn func(ctx context.Context, username string) (persistence.Admin, error)
}

func (m *mockRepository) Create(ctx context.Context, params persistence.CreateAdminParams) (persistence.Admin, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepository) GetByUsername(ctx context.Context, username string) (persistence.Admin, error) {
	if m.getByUsernameFn == nil {
		panic("getByUsernameFn not configured")
	}
	return m.getByUsernameFn(ctx, username)
}

var testSecret = []byte("test-secret")

func storedAdmin(t *testing.T, password string, plant *string) persistence.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return persistence.Admin{
		AdminID:      uuid.New(),
		Username:     "gatehouse",
		PasswordHash: string(hash),
		Plant:        plant,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()

	plant := "Forging Division"
	record := storedAdmin(t, "correct horse", &plant)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	repository := &mockRepository{getByUsernameFn: func(ctx context.Context, username string) (persistence.Admin, error) {
		require.Equal(t, "gatehouse", username)
		return record, nil
	}}

	svc := New(repository, Config{JWTSecret: testSecret, Now: func() time.Time { return now }})

	result, err := svc.Login(context.Background(), LoginInput{Username: " gatehouse ", Password: "correct horse"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, now.Add(platformauth.DefaultTokenTTL), result.ExpiresAt)
	require.Equal(t, record.AdminID, result.Admin.ID)

	// The issued token carries the plant claim for scoped admins.
	claims, err := platformauth.HS256Verifier(testSecret)(context.Background(), result.Token)
	require.NoError(t, err)
	creds, err := platformauth.DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.NotNil(t, creds.Plant)
	require.Equal(t, "Forging Division", *creds.Plant)
	require.False(t, creds.IsSuperAdmin())
}

func TestLoginSuperAdminTokenHasNoPlant(t *testing.T) {
	t.Parallel()

	record := storedAdmin(t, "correct horse", nil)
	repository := &mockRepository{getByUsernameFn: func(ctx context.Context, username string) (persistence.Admin, error) {
		return record, nil
	}}

	svc := New(repository, Config{JWTSecret: testSecret})

	result, err := svc.Login(context.Background(), LoginInput{Username: "gatehouse", Password: "correct horse"})
	require.NoError(t, err)

	claims, err := platformauth.HS256Verifier(testSecret)(context.Background(), result.Token)
	require.NoError(t, err)
	creds, err := platformauth.DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.True(t, creds.IsSuperAdmin())
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	record := storedAdmin(t, "correct horse", nil)
	repository := &mockRepository{getByUsernameFn: func(ctx context.Context, username string) (persistence.Admin, error) {
		return record, nil
	}}

	svc := New(repository, Config{JWTSecret: testSecret})

	_, err := svc.Login(context.Background(), LoginInput{Username: "gatehouse", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUserSameError(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{getByUsernameFn: func(ctx context.Context, username string) (persistence.Admin, error) {
		return persistence.Admin{}, persistence.ErrAdminNotFound
	}}

	svc := New(repository, Config{JWTSecret: testSecret})

	_, err := svc.Login(context.Background(), LoginInput{Username: "nobody", Password: "whatever"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginEmptyFields(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{}, Config{JWTSecret: testSecret})

	_, err := svc.Login(context.Background(), LoginInput{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{}, Config{JWTSecret: testSecret})

	_, err := svc.Create(context.Background(), CreateInput{Password: "short"})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "username")
	require.Contains(t, validationErr.Fields, "password")
}

func TestCreateHashesPassword(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{createFn: func(ctx context.Context, params persistence.CreateAdminParams) (persistence.Admin, error) {
		require.NotEqual(t, uuid.Nil, params.AdminID)
		require.Equal(t, "gatehouse", params.Username)
		require.NotEqual(t, "long enough password", params.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(params.PasswordHash), []byte("long enough password")))
		require.Nil(t, params.Plant)
		return persistence.Admin{AdminID: params.AdminID, Username: params.Username, PasswordHash: params.PasswordHash}, nil
	}}

	svc := New(repository, Config{JWTSecret: testSecret})

	admin, err := svc.Create(context.Background(), CreateInput{Username: " gatehouse ", Password: "long enough password"})
	require.NoError(t, err)
	require.Equal(t, "gatehouse", admin.Username)
	require.Nil(t, admin.Plant)
}

func TestCreateBlankPlantIsSuperAdmin(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{createFn: func(ctx context.Context, params persistence.CreateAdminParams) (persistence.Admin, error) {
		require.Nil(t, params.Plant)
		return persistence.Admin{AdminID: params.AdminID, Username: params.Username}, nil
	}}

	svc := New(repository, Config{JWTSecret: testSecret})

	blank := "   "
	_, err := svc.Create(context.Background(), CreateInput{Username: "root", Password: "long enough password", Plant: &blank})
	require.NoError(t, err)
}

func TestCreateConflict(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{createFn: func(ctx context.Context, params persistence.CreateAdminParams) (persistence.Admin, error) {
		return persistence.Admin{}, persistence.ErrAdminConflict
	}}

	svc := New(repository, Config{JWTSecret: testSecret})

	_, err := svc.Create(context.Background(), CreateInput{Username: "gatehouse", Password: "long enough password"})
	require.ErrorIs(t, err, ErrConflict)
}
