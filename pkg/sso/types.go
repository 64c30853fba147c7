package sso

import (
	"errors"
	"time"
)

// ProviderType represents the sign-in protocol
type ProviderType string

const (
	ProviderTypeOAuth2 ProviderType = "oauth2"
	ProviderTypeOIDC   ProviderType = "oidc"
)

// ProviderName identifies a configured sign-in provider in URLs and sessions
type ProviderName string

const (
	ProviderGitHub ProviderName = "github"
	ProviderGoogle ProviderName = "google"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrMissingEmail is returned when a provider does not share an email
	ErrMissingEmail = errors.New("provider did not return an email address")
)

// ProviderConfig represents sign-in provider configuration
type ProviderConfig struct {
	Name         ProviderName
	Type         ProviderType
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// OAuth2 endpoints
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	// EmailsURL lists the account's addresses when the profile has no
	// public email (GitHub)
	EmailsURL string

	// OIDC discovery
	IssuerURL string

	AttributeMapping AttributeMap
}

// AttributeMap defines which profile fields hold the user's details
type AttributeMap struct {
	UserID   string
	Email    string
	FullName string
	Avatar   string
}

// SSOUser represents user information from the provider
type SSOUser struct {
	ExternalID string
	Email      string
	FullName   string
	AvatarURL  string
	Provider   ProviderName
}

// Session is a signed-in browser session
type Session struct {
	ID        string
	UserID    string
	Provider  ProviderName
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has expired at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
