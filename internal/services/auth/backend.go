package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/findosh/agriconnect/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Backend is the remote account service the session manager talks to
type Backend interface {
	Login(ctx context.Context, creds models.LoginCredentials) (*models.User, *models.AuthTokens, error)
	Register(ctx context.Context, data models.RegisterData) (*models.User, *models.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	UpdateProfile(ctx context.Context, current models.User, updates models.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) error
}

const (
	DemoEmail    = "demo@agriconnect.com"
	DemoPassword = "demo123"

	accessTokenTTL  = time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

// Latency is the artificial delay applied to each simulated call
type Latency struct {
	Login          time.Duration
	Register       time.Duration
	Logout         time.Duration
	Refresh        time.Duration
	UpdateProfile  time.Duration
	ChangePassword time.Duration
	PasswordReset  time.Duration
	VerifyEmail    time.Duration
}

// DefaultLatency mirrors a slow mobile connection
func DefaultLatency() Latency {
	return Latency{
		Login:          1000 * time.Millisecond,
		Register:       1500 * time.Millisecond,
		Logout:         500 * time.Millisecond,
		Refresh:        800 * time.Millisecond,
		UpdateProfile:  1000 * time.Millisecond,
		ChangePassword: 1000 * time.Millisecond,
		PasswordReset:  1000 * time.Millisecond,
		VerifyEmail:    1000 * time.Millisecond,
	}
}

// SimulatedConfig configures the in-process backend
type SimulatedConfig struct {
	SecretKey string
	Latency   Latency
	Now       func() time.Time
}

// SimulatedBackend stands in for the account API. It knows a single demo
// account and signs tokens as HS256 JWTs.
type SimulatedBackend struct {
	secret  []byte
	latency Latency
	now     func() time.Time

	mu       sync.Mutex
	demoHash []byte
	revoked  map[string]struct{}
}

// NewSimulatedBackend creates the simulated backend
func NewSimulatedBackend(cfg SimulatedConfig) (*SimulatedBackend, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret key required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}

	return &SimulatedBackend{
		secret:   []byte(cfg.SecretKey),
		latency:  cfg.Latency,
		now:      now,
		demoHash: hash,
		revoked:  make(map[string]struct{}),
	}, nil
}

// Login accepts only the demo credentials
func (b *SimulatedBackend) Login(ctx context.Context, creds models.LoginCredentials) (*models.User, *models.AuthTokens, error) {
	if err := wait(ctx, b.latency.Login); err != nil {
		return nil, nil, err
	}

	b.mu.Lock()
	hash := b.demoHash
	b.mu.Unlock()

	if creds.Email != DemoEmail {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	now := b.now().UTC()
	user := &models.User{
		ID:         "1",
		Email:      creds.Email,
		Name:       "דמוס חקלאי",
		Role:       models.RoleFarmer,
		FarmID:     "farm-1",
		Avatar:     "/avatars/farmer-1.jpg",
		IsVerified: true,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastLogin:  now,
	}

	tokens, err := b.issueTokens(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Register always succeeds; there is no duplicate email check
func (b *SimulatedBackend) Register(ctx context.Context, data models.RegisterData) (*models.User, *models.AuthTokens, error) {
	if err := wait(ctx, b.latency.Register); err != nil {
		return nil, nil, err
	}

	now := b.now().UTC()
	user := &models.User{
		ID:         uuid.NewString(),
		Email:      data.Email,
		Name:       data.Name,
		Role:       models.RoleFarmer,
		FarmID:     "farm-" + uuid.NewString(),
		IsVerified: false,
		CreatedAt:  now,
		LastLogin:  now,
	}

	tokens, err := b.issueTokens(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh rotates a refresh token into a new token pair
func (b *SimulatedBackend) Refresh(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	if err := wait(ctx, b.latency.Refresh); err != nil {
		return nil, err
	}

	claims, err := b.parse(refreshToken)
	if err != nil {
		return nil, backendError("token refresh", err.Error())
	}
	if claims["typ"] != "refresh" {
		return nil, backendError("token refresh", "not a refresh token")
	}
	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)

	b.mu.Lock()
	if _, gone := b.revoked[jti]; gone {
		b.mu.Unlock()
		return nil, backendError("token refresh", "refresh token revoked")
	}
	b.revoked[jti] = struct{}{}
	b.mu.Unlock()

	return b.issueTokens(sub)
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (b *SimulatedBackend) Logout(ctx context.Context, refreshToken string) error {
	if err := wait(ctx, b.latency.Logout); err != nil {
		return err
	}
	claims, err := b.parse(refreshToken)
	if err != nil {
		return nil
	}
	if jti, ok := claims["jti"].(string); ok {
		b.mu.Lock()
		b.revoked[jti] = struct{}{}
		b.mu.Unlock()
	}
	return nil
}

func (b *SimulatedBackend) UpdateProfile(ctx context.Context, current models.User, updates models.ProfileUpdate) (*models.User, error) {
	if err := wait(ctx, b.latency.UpdateProfile); err != nil {
		return nil, err
	}
	if updates.Role != nil && !updates.Role.Valid() {
		return nil, backendError("profile update", "unknown role "+string(*updates.Role))
	}
	merged := updates.Apply(current)
	return &merged, nil
}

// ChangePassword updates the demo account hash; other accounts always succeed
func (b *SimulatedBackend) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := wait(ctx, b.latency.ChangePassword); err != nil {
		return err
	}
	if newPassword == "" {
		return backendError("password change", "new password required")
	}
	if userID != "1" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := bcrypt.CompareHashAndPassword(b.demoHash, []byte(currentPassword)); err != nil {
		return backendError("password change", "current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	b.demoHash = hash
	return nil
}

func (b *SimulatedBackend) RequestPasswordReset(ctx context.Context, email string) error {
	if err := wait(ctx, b.latency.PasswordReset); err != nil {
		return err
	}
	if email == "" {
		return backendError("password reset", "email required")
	}
	return nil
}

func (b *SimulatedBackend) VerifyEmail(ctx context.Context, token string) error {
	if err := wait(ctx, b.latency.VerifyEmail); err != nil {
		return err
	}
	if token == "" {
		return backendError("email verification", "verification token required")
	}
	return nil
}

func (b *SimulatedBackend) issueTokens(userID string) (*models.AuthTokens, error) {
	now := b.now()

	access, err := b.sign(jwt.MapClaims{
		"sub": userID,
		"typ": "access",
		"iat": now.Unix(),
		"exp": now.Add(accessTokenTTL).Unix(),
		"jti": uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := b.sign(jwt.MapClaims{
		"sub": userID,
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": now.Add(refreshTokenTTL).Unix(),
		"jti": uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(accessTokenTTL / time.Second),
	}, nil
}

func (b *SimulatedBackend) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

func (b *SimulatedBackend) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return b.secret, nil
	}, jwt.WithTimeFunc(b.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// wait blocks for d or until ctx is done
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
