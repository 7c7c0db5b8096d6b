// Package auth manages the client-side session: tokens, expiry and the
// signed-in user, persisted in a durable key-value store.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/findosh/agriconnect/internal/models"
	"github.com/findosh/agriconnect/internal/storage"
	"go.uber.org/zap"
)

// Storage keys owned by the session manager
const (
	KeyAccessToken  = "agriconnect_access_token"
	KeyRefreshToken = "agriconnect_refresh_token"
	KeyUser         = "agriconnect_user"
	KeyTokenExpiry  = "agriconnect_token_expiry"
)

var sessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyTokenExpiry}

const (
	DefaultCheckInterval    = time.Minute
	DefaultRefreshThreshold = 5 * time.Minute
)

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	Now              func() time.Time
	CheckInterval    time.Duration
	RefreshThreshold time.Duration
	Logger           *zap.Logger
}

// AuthResult is returned by a successful login or registration
type AuthResult struct {
	User   *models.User       `json:"user"`
	Tokens *models.AuthTokens `json:"tokens"`
}

// Manager owns the session of a single user
type Manager struct {
	store     storage.Store
	backend   Backend
	now       func() time.Time
	interval  time.Duration
	threshold time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	task   *refreshTask
	closed bool
}

// NewManager creates a session manager and starts its refresh task.
// Call Close to stop the task.
func NewManager(store storage.Store, backend Backend, opts Options) *Manager {
	m := &Manager{
		store:     store,
		backend:   backend,
		now:       opts.Now,
		interval:  opts.CheckInterval,
		threshold: opts.RefreshThreshold,
		logger:    opts.Logger,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.interval <= 0 {
		m.interval = DefaultCheckInterval
	}
	if m.threshold <= 0 {
		m.threshold = DefaultRefreshThreshold
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	m.startRefreshTimer()
	return m
}

// Login authenticates with email and password and persists the session
func (m *Manager) Login(ctx context.Context, creds models.LoginCredentials) (*AuthResult, error) {
	user, tokens, err := m.backend.Login(ctx, creds)
	if err != nil {
		m.logger.Warn("login failed", zap.String("email", creds.Email), zap.Error(err))
		return nil, err
	}

	if err := m.storeSession(ctx, user, tokens); err != nil {
		return nil, err
	}
	m.startRefreshTimer()

	m.logger.Info("user logged in", zap.String("user_id", user.ID))
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Register creates an account and signs it in
func (m *Manager) Register(ctx context.Context, data models.RegisterData) (*AuthResult, error) {
	user, tokens, err := m.backend.Register(ctx, data)
	if err != nil {
		m.logger.Warn("registration failed", zap.String("email", data.Email), zap.Error(err))
		return nil, err
	}

	if err := m.storeSession(ctx, user, tokens); err != nil {
		return nil, err
	}
	m.startRefreshTimer()

	m.logger.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Logout invalidates the refresh token on a best-effort basis, then clears
// every session key and stops the refresh task. Safe without a session.
func (m *Manager) Logout(ctx context.Context) {
	if refreshToken := m.RefreshToken(ctx); refreshToken != "" {
		if err := m.backend.Logout(ctx, refreshToken); err != nil {
			m.logger.Warn("logout call failed", zap.Error(err))
		}
	}

	if err := m.store.Delete(context.WithoutCancel(ctx), sessionKeys...); err != nil {
		m.logger.Error("failed to clear session", zap.Error(err))
	}
	m.stopRefreshTimer()
}

// RefreshAccessToken exchanges the stored refresh token for a new pair.
// Any failure ends the session: the manager logs out before returning the error.
func (m *Manager) RefreshAccessToken(ctx context.Context) (*models.AuthTokens, error) {
	tokens, err := m.refreshTokens(ctx)
	if err != nil {
		m.logger.Error("token refresh failed", zap.Error(err))
		m.Logout(ctx)
		return nil, err
	}
	return tokens, nil
}

func (m *Manager) refreshTokens(ctx context.Context) (*models.AuthTokens, error) {
	refreshToken := m.RefreshToken(ctx)
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	tokens, err := m.backend.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := m.storeTokens(ctx, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// CurrentUser returns the stored user, or nil when absent or unreadable
func (m *Manager) CurrentUser(ctx context.Context) *models.User {
	raw := m.read(ctx, KeyUser)
	if raw == "" {
		return nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.logger.Warn("error getting current user", zap.Error(fmt.Errorf("%w: %v", ErrStorageParse, err)))
		return nil
	}
	return &user
}

// AccessToken returns the stored access token or ""
func (m *Manager) AccessToken(ctx context.Context) string {
	return m.read(ctx, KeyAccessToken)
}

// RefreshToken returns the stored refresh token or ""
func (m *Manager) RefreshToken(ctx context.Context) string {
	return m.read(ctx, KeyRefreshToken)
}

// IsAuthenticated reports whether both an access token and a user are stored.
// Expiry is not considered.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.AccessToken(ctx) != "" && m.CurrentUser(ctx) != nil
}

// IsTokenExpired is true when no expiry is stored or it has passed
func (m *Manager) IsTokenExpired(ctx context.Context) bool {
	expiry, ok := m.expiry(ctx)
	if !ok {
		return true
	}
	return !m.now().Before(expiry)
}

// NeedsRefresh is true when no expiry is stored or it is within the
// refresh threshold
func (m *Manager) NeedsRefresh(ctx context.Context) bool {
	expiry, ok := m.expiry(ctx)
	if !ok {
		return true
	}
	return !m.now().Before(expiry.Add(-m.threshold))
}

// TokenExpiry returns the stored access token expiry
func (m *Manager) TokenExpiry(ctx context.Context) (time.Time, bool) {
	return m.expiry(ctx)
}

// UpdateProfile merges updates into the current user and persists the result
func (m *Manager) UpdateProfile(ctx context.Context, updates models.ProfileUpdate) (*models.User, error) {
	current := m.CurrentUser(ctx)
	if current == nil {
		return nil, ErrNotLoggedIn
	}

	updated, err := m.backend.UpdateProfile(ctx, *current, updates)
	if err != nil {
		m.logger.Warn("profile update failed", zap.String("user_id", current.ID), zap.Error(err))
		return nil, err
	}
	if err := m.storeUser(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangePassword changes the password of the signed-in user
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	current := m.CurrentUser(ctx)
	if current == nil {
		return ErrNotLoggedIn
	}

	if err := m.backend.ChangePassword(ctx, current.ID, currentPassword, newPassword); err != nil {
		m.logger.Warn("password change failed", zap.String("user_id", current.ID), zap.Error(err))
		return err
	}
	return nil
}

// RequestPasswordReset asks the backend to send a reset link
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	if err := m.backend.RequestPasswordReset(ctx, email); err != nil {
		m.logger.Warn("password reset failed", zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

// VerifyEmail confirms an email address with a verification token
func (m *Manager) VerifyEmail(ctx context.Context, token string) error {
	if err := m.backend.VerifyEmail(ctx, token); err != nil {
		m.logger.Warn("email verification failed", zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) storeSession(ctx context.Context, user *models.User, tokens *models.AuthTokens) error {
	if err := m.storeTokens(ctx, tokens); err != nil {
		return err
	}
	return m.storeUser(ctx, user)
}

func (m *Manager) storeTokens(ctx context.Context, tokens *models.AuthTokens) error {
	expiry := tokens.ExpiryFrom(m.now())
	writes := []struct{ key, value string }{
		{KeyAccessToken, tokens.AccessToken},
		{KeyRefreshToken, tokens.RefreshToken},
		{KeyTokenExpiry, strconv.FormatInt(expiry.UnixMilli(), 10)},
	}
	for _, w := range writes {
		if err := m.store.Set(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("failed to store %s: %w", w.key, err)
		}
	}
	return nil
}

func (m *Manager) storeUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := m.store.Set(ctx, KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (m *Manager) read(ctx context.Context, key string) string {
	value, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("failed to read session state", zap.String("key", key), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func (m *Manager) expiry(ctx context.Context) (time.Time, bool) {
	raw := m.read(ctx, KeyTokenExpiry)
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		m.logger.Warn("unreadable token expiry", zap.Error(fmt.Errorf("%w: %v", ErrStorageParse, err)))
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
