// Package models defines core domain types
package models

import (
	"time"
)

// Role identifies what a member does on the platform
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// FarmType describes the main activity of a registering farm
type FarmType string

const (
	FarmChickens   FarmType = "chickens"
	FarmCows       FarmType = "cows"
	FarmVegetables FarmType = "vegetables"
	FarmMixed      FarmType = "mixed"
)

// User represents the signed-in member. The JSON form is what gets
// persisted under the user key, so tags must stay stable.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	FarmID     string    `json:"farmId,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	LastLogin  time.Time `json:"lastLogin"`
}

// AuthTokens is the token pair issued by the backend.
// ExpiresIn is in seconds.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// ExpiryFrom returns the absolute expiry of the access token when issued at now
func (t AuthTokens) ExpiryFrom(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// LoginCredentials contains login form data
type LoginCredentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// RegisterData contains registration form data
type RegisterData struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	FarmName string   `json:"farmName,omitempty"`
	FarmType FarmType `json:"farmType,omitempty"`
	Location string   `json:"location,omitempty"`
}

// ProfileUpdate holds the fields a profile update may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Email      *string `json:"email,omitempty"`
	Name       *string `json:"name,omitempty"`
	Role       *Role   `json:"role,omitempty"`
	FarmID     *string `json:"farmId,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	IsVerified *bool   `json:"isVerified,omitempty"`
}

// Apply returns a copy of u with the non-nil fields of p merged in
func (p ProfileUpdate) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.FarmID != nil {
		u.FarmID = *p.FarmID
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
	return u
}
