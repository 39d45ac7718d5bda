package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cdm-registrar/registrar-api/internal/models"
	"github.com/cdm-registrar/registrar-api/internal/repository"
	appErrors "github.com/cdm-registrar/registrar-api/pkg/errors"
)

type mockUserStore struct {
	users        map[string]models.User
	tokens       map[string]models.RefreshToken
	auditActions []string
	revokedAll   []string
	duplicate    bool
	lastLoginSet bool
}

func (m *mockUserStore) Create(ctx context.Context, user *models.User) error {
	if m.duplicate {
		return repository.ErrDuplicateUser
	}
	if m.users == nil {
		m.users = make(map[string]models.User)
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	for _, u := range m.users {
		if u.StudentNumber == identifier || u.Email == identifier {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (m *mockUserStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockUserStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]models.RefreshToken)
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockUserStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok && !t.Revoked {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for key, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			m.tokens[key] = t
		}
	}
	return nil
}

func (m *mockUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockUserStore) {
	t.Helper()
	store := &mockUserStore{users: make(map[string]models.User), tokens: make(map[string]models.RefreshToken)}
	svc := NewAuthService(store, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "registrar-api",
	})
	return svc, store
}

func seedAccount(t *testing.T, store *mockUserStore, active bool) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		ID:            "user-1",
		StudentNumber: "2021-00123",
		Email:         "juan@cdm.edu.ph",
		PasswordHash:  string(hash),
		FirstName:     "Juan",
		LastName:      "Dela Cruz",
		Role:          models.RoleStudent,
		Active:        active,
	}
	store.users[user.ID] = user
	return user
}

func TestSignupCreatesStudentAccount(t *testing.T) {
	svc, store := newAuthFixture(t)

	info, err := svc.Signup(context.Background(), models.SignupRequest{
		StudentNumber: "2021-00123",
		Email:         "juan@cdm.edu.ph",
		Password:      "correct horse",
		FirstName:     "Juan",
		LastName:      "Dela Cruz",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Equal(t, "Juan Dela Cruz", info.FullName)
	assert.Contains(t, store.auditActions, models.AuditActionSignup)

	created := store.users[info.ID]
	assert.NotEqual(t, "correct horse", created.PasswordHash)
	assert.True(t, created.Active)
}

func TestSignupDuplicateAccount(t *testing.T) {
	svc, store := newAuthFixture(t)
	store.duplicate = true

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		StudentNumber: "2021-00123",
		Email:         "juan@cdm.edu.ph",
		Password:      "correct horse",
		FirstName:     "Juan",
		LastName:      "Dela Cruz",
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSignupValidatesPayload(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		StudentNumber: "2021-00123",
		Email:         "not-an-email",
		Password:      "short",
		FirstName:     "Juan",
		LastName:      "Dela Cruz",
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "correct horse",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.True(t, store.lastLoginSet)
	assert.Contains(t, store.auditActions, models.AuditActionLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginByEmail(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "juan@cdm.edu.ph",
		Password:   "correct horse",
	})
	assert.NoError(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "wrong",
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "correct horse",
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "correct horse",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is burned.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)
	store.tokens["stale"] = models.RefreshToken{
		ID:        "token-1",
		UserID:    "user-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "correct horse",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "user-1", models.LoginRequest{}))
	assert.True(t, store.tokens[login.RefreshToken].Revoked)

	err = svc.Logout(context.Background(), login.RefreshToken, "user-1", models.LoginRequest{})
	assert.Error(t, err)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "correct horse",
	})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else", models.LoginRequest{})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, store := newAuthFixture(t)
	seedAccount(t, store, true)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "correct horse",
	})
	require.NoError(t, err)

	other := NewAuthService(store, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "a different secret",
		AccessTokenExpiry: 15 * time.Minute,
	})
	_, err = other.ValidateToken(login.AccessToken)
	assert.Error(t, err)
}

func TestSingleSessionRevokesPriorTokens(t *testing.T) {
	store := &mockUserStore{users: make(map[string]models.User), tokens: make(map[string]models.RefreshToken)}
	svc := NewAuthService(store, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		SingleSession:      true,
	})
	seedAccount(t, store, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "2021-00123",
		Password:   "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, store.revokedAll)
}
