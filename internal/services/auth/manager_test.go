package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/findosh/agriconnect/internal/models"
	"github.com/findosh/agriconnect/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// failingRefresh rejects every refresh call
type failingRefresh struct {
	*SimulatedBackend
}

func (f failingRefresh) Refresh(context.Context, string) (*models.AuthTokens, error) {
	return nil, backendError("token refresh", "refresh rejected")
}

// countingRefresh counts refresh calls
type countingRefresh struct {
	*SimulatedBackend
	calls atomic.Int32
}

func (c *countingRefresh) Refresh(ctx context.Context, token string) (*models.AuthTokens, error) {
	c.calls.Add(1)
	return c.SimulatedBackend.Refresh(ctx, token)
}

func newBackend(t *testing.T, clock *fakeClock) *SimulatedBackend {
	t.Helper()
	b, err := NewSimulatedBackend(SimulatedConfig{SecretKey: "test-secret", Now: clock.Now})
	require.NoError(t, err)
	return b
}

func newTestManager(t *testing.T, store storage.Store, backend Backend, clock *fakeClock) *Manager {
	t.Helper()
	m := NewManager(store, backend, Options{Now: clock.Now})
	t.Cleanup(m.Close)
	return m
}

func demoLogin(t *testing.T, m *Manager) *AuthResult {
	t.Helper()
	res, err := m.Login(context.Background(), models.LoginCredentials{Email: DemoEmail, Password: DemoPassword})
	require.NoError(t, err)
	return res
}

func storedKeys(t *testing.T, s storage.Store) []string {
	t.Helper()
	var present []string
	for _, k := range sessionKeys {
		_, ok, err := s.Get(context.Background(), k)
		require.NoError(t, err)
		if ok {
			present = append(present, k)
		}
	}
	return present
}

func TestManager_Login(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := newTestManager(t, store, newBackend(t, clock), clock)
	ctx := context.Background()

	res := demoLogin(t, m)
	assert.Equal(t, "1", res.User.ID)
	assert.Equal(t, models.RoleFarmer, res.User.Role)
	assert.Equal(t, int64(3600), res.Tokens.ExpiresIn)

	assert.ElementsMatch(t, sessionKeys, storedKeys(t, store))
	assert.True(t, m.IsAuthenticated(ctx))
	assert.Equal(t, res.Tokens.AccessToken, m.AccessToken(ctx))
	assert.Equal(t, res.Tokens.RefreshToken, m.RefreshToken(ctx))

	raw, _, _ := store.Get(ctx, KeyTokenExpiry)
	want := clock.Now().Add(time.Hour).UnixMilli()
	assert.Equal(t, strconv.FormatInt(want, 10), raw)

	user := m.CurrentUser(ctx)
	require.NotNil(t, user)
	assert.Equal(t, DemoEmail, user.Email)
	assert.True(t, user.IsVerified)
	assert.True(t, m.RefreshRunning())
}

func TestManager_LoginInvalidCredentials(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := newTestManager(t, store, newBackend(t, clock), clock)

	_, err := m.Login(context.Background(), models.LoginCredentials{Email: DemoEmail, Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "invalid email or password", err.Error())

	_, err = m.Login(context.Background(), models.LoginCredentials{Email: "someone@farm.io", Password: DemoPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Empty(t, storedKeys(t, store))
	assert.False(t, m.IsAuthenticated(context.Background()))
}

func TestManager_LoginCancelled(t *testing.T) {
	clock := newFakeClock()
	backend, err := NewSimulatedBackend(SimulatedConfig{
		SecretKey: "test-secret",
		Latency:   DefaultLatency(),
		Now:       clock.Now,
	})
	require.NoError(t, err)
	m := newTestManager(t, storage.NewMemory(), backend, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Login(ctx, models.LoginCredentials{Email: DemoEmail, Password: DemoPassword})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_Register(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := newTestManager(t, store, newBackend(t, clock), clock)
	ctx := context.Background()

	data := models.RegisterData{
		Email:    "dana@moshav.org",
		Password: "secret-pass",
		Name:     "Dana",
		FarmName: "Green Valley",
		FarmType: models.FarmVegetables,
	}
	res, err := m.Register(ctx, data)
	require.NoError(t, err)
	assert.NotEmpty(t, res.User.ID)
	assert.Equal(t, "Dana", res.User.Name)
	assert.False(t, res.User.IsVerified)
	assert.Contains(t, res.User.FarmID, "farm-")

	// No duplicate check
	again, err := m.Register(ctx, data)
	require.NoError(t, err)
	assert.NotEqual(t, res.User.ID, again.User.ID)

	assert.True(t, m.IsAuthenticated(ctx))
	assert.Equal(t, again.User.ID, m.CurrentUser(ctx).ID)
}

func TestManager_LogoutClearsSession(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := newTestManager(t, store, newBackend(t, clock), clock)
	ctx := context.Background()

	demoLogin(t, m)
	m.Logout(ctx)

	assert.Empty(t, storedKeys(t, store))
	assert.False(t, m.IsAuthenticated(ctx))
	assert.Nil(t, m.CurrentUser(ctx))
	assert.False(t, m.RefreshRunning())

	// Second logout without a session is harmless
	m.Logout(ctx)
	assert.Empty(t, storedKeys(t, store))
}

func TestManager_LogoutRevokesRefreshToken(t *testing.T) {
	clock := newFakeClock()
	backend := newBackend(t, clock)
	m := newTestManager(t, storage.NewMemory(), backend, clock)

	res := demoLogin(t, m)
	m.Logout(context.Background())

	_, err := backend.Refresh(context.Background(), res.Tokens.RefreshToken)
	assert.True(t, IsBackendError(err))
}

func TestManager_RefreshThreshold(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, storage.NewMemory(), newBackend(t, clock), clock)
	ctx := context.Background()

	assert.True(t, m.NeedsRefresh(ctx), "no expiry stored")
	assert.True(t, m.IsTokenExpired(ctx), "no expiry stored")

	demoLogin(t, m)
	assert.False(t, m.NeedsRefresh(ctx))
	assert.False(t, m.IsTokenExpired(ctx))

	clock.Advance(time.Hour - 5*time.Minute - time.Millisecond)
	assert.False(t, m.NeedsRefresh(ctx))

	clock.Advance(time.Millisecond)
	assert.True(t, m.NeedsRefresh(ctx))
	assert.False(t, m.IsTokenExpired(ctx))

	clock.Advance(5 * time.Minute)
	assert.True(t, m.IsTokenExpired(ctx))
	// Expiry does not affect authentication
	assert.True(t, m.IsAuthenticated(ctx))
}

func TestManager_RefreshAccessToken(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, storage.NewMemory(), newBackend(t, clock), clock)
	ctx := context.Background()

	first := demoLogin(t, m)
	clock.Advance(58 * time.Minute)
	require.True(t, m.NeedsRefresh(ctx))

	tokens, err := m.RefreshAccessToken(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.AccessToken, tokens.AccessToken)
	assert.NotEqual(t, first.Tokens.RefreshToken, tokens.RefreshToken)
	assert.Equal(t, tokens.AccessToken, m.AccessToken(ctx))
	assert.False(t, m.NeedsRefresh(ctx))

	expiry, ok := m.TokenExpiry(ctx)
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Hour).UnixMilli(), expiry.UnixMilli())
}

func TestManager_RefreshFailureLogsOut(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := newTestManager(t, store, failingRefresh{newBackend(t, clock)}, clock)
	ctx := context.Background()

	demoLogin(t, m)
	tokens, err := m.RefreshAccessToken(ctx)
	assert.Nil(t, tokens)
	assert.True(t, IsBackendError(err))

	assert.Empty(t, storedKeys(t, store))
	assert.Nil(t, m.CurrentUser(ctx))
	assert.False(t, m.IsAuthenticated(ctx))
	assert.False(t, m.RefreshRunning())
}

func TestManager_RefreshWithoutToken(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, storage.NewMemory(), newBackend(t, clock), clock)

	tokens, err := m.RefreshAccessToken(context.Background())
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestManager_CorruptedState(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := newTestManager(t, store, newBackend(t, clock), clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyAccessToken, "token"))
	require.NoError(t, store.Set(ctx, KeyUser, "{not json"))
	require.NoError(t, store.Set(ctx, KeyTokenExpiry, "soon"))

	assert.Nil(t, m.CurrentUser(ctx))
	assert.False(t, m.IsAuthenticated(ctx))
	assert.True(t, m.IsTokenExpired(ctx))
	assert.True(t, m.NeedsRefresh(ctx))
}

func TestManager_SessionSurvivesRestart(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	backend := newBackend(t, clock)

	first := newTestManager(t, store, backend, clock)
	res := demoLogin(t, first)
	first.Close()

	second := newTestManager(t, store, backend, clock)
	ctx := context.Background()
	assert.True(t, second.IsAuthenticated(ctx))
	assert.Equal(t, res.User.ID, second.CurrentUser(ctx).ID)
}

func TestManager_UpdateProfile(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := newTestManager(t, store, newBackend(t, clock), clock)
	ctx := context.Background()

	name := "Yossi"
	_, err := m.UpdateProfile(ctx, models.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	demoLogin(t, m)
	avatar := "/avatars/yossi.png"
	updated, err := m.UpdateProfile(ctx, models.ProfileUpdate{Name: &name, Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Yossi", updated.Name)
	assert.Equal(t, avatar, updated.Avatar)
	assert.Equal(t, DemoEmail, updated.Email)
	assert.Equal(t, "Yossi", m.CurrentUser(ctx).Name)

	bad := models.Role("overlord")
	_, err = m.UpdateProfile(ctx, models.ProfileUpdate{Role: &bad})
	assert.True(t, IsBackendError(err))
	assert.Equal(t, "Yossi", m.CurrentUser(ctx).Name)
}

func TestManager_ChangePassword(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, storage.NewMemory(), newBackend(t, clock), clock)
	ctx := context.Background()

	assert.ErrorIs(t, m.ChangePassword(ctx, DemoPassword, "new-pass"), ErrNotLoggedIn)

	demoLogin(t, m)
	err := m.ChangePassword(ctx, "not-it", "new-pass")
	assert.True(t, IsBackendError(err))

	require.NoError(t, m.ChangePassword(ctx, DemoPassword, "new-pass"))
	m.Logout(ctx)

	_, err = m.Login(ctx, models.LoginCredentials{Email: DemoEmail, Password: DemoPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login(ctx, models.LoginCredentials{Email: DemoEmail, Password: "new-pass"})
	assert.NoError(t, err)
}

func TestManager_ResetAndVerify(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, storage.NewMemory(), newBackend(t, clock), clock)
	ctx := context.Background()

	assert.NoError(t, m.RequestPasswordReset(ctx, DemoEmail))
	assert.NoError(t, m.VerifyEmail(ctx, "verify-123"))

	var be *BackendError
	err := m.RequestPasswordReset(ctx, "")
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "password reset", be.Op)

	assert.True(t, IsBackendError(m.VerifyEmail(ctx, "")))
}
