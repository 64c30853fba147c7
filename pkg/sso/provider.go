package sso

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Provider defines the interface for sign-in providers
type Provider interface {
	// GetType returns the provider type (OAuth2, OIDC)
	GetType() ProviderType

	// GetName returns the provider name
	GetName() ProviderName

	// InitiateLogin redirects the browser to the provider
	InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error

	// HandleCallback exchanges the authorization code and returns the user
	HandleCallback(r *http.Request) (*SSOUser, error)

	// ValidateConfig validates the provider configuration
	ValidateConfig() error
}

// NewProvider creates a provider instance from configuration. OIDC providers
// run discovery against the issuer.
func NewProvider(ctx context.Context, config *ProviderConfig) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch config.Type {
	case ProviderTypeOAuth2:
		provider, err = NewOAuth2Provider(config)
	case ProviderTypeOIDC:
		provider, err = NewOIDCProvider(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := provider.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid %s provider config: %w", config.Name, err)
	}
	return provider, nil
}

// GetPresetConfig returns preset configuration for well-known providers.
// Callers fill in the client credentials; the redirect URL is derived from
// appURL.
func GetPresetConfig(providerName ProviderName, appURL string) (*ProviderConfig, error) {
	redirectURL := fmt.Sprintf("%s/auth/%s/callback", strings.TrimRight(appURL, "/"), providerName)

	switch providerName {
	case ProviderGitHub:
		return &ProviderConfig{
			Name:        ProviderGitHub,
			Type:        ProviderTypeOAuth2,
			RedirectURL: redirectURL,
			Scopes:      []string{"read:user", "user:email"},
			AuthURL:     "https://github.com/login/oauth/authorize",
			TokenURL:    "https://github.com/login/oauth/access_token",
			UserInfoURL: "https://api.github.com/user",
			EmailsURL:   "https://api.github.com/user/emails",
			AttributeMapping: AttributeMap{
				UserID:   "id",
				Email:    "email",
				FullName: "name",
				Avatar:   "avatar_url",
			},
		}, nil

	case ProviderGoogle:
		return &ProviderConfig{
			Name:        ProviderGoogle,
			Type:        ProviderTypeOIDC,
			RedirectURL: redirectURL,
			Scopes:      []string{"openid", "profile", "email"},
			IssuerURL:   "https://accounts.google.com",
			AttributeMapping: AttributeMap{
				UserID:   "sub",
				Email:    "email",
				FullName: "name",
				Avatar:   "picture",
			},
		}, nil

	default:
		return nil, fmt.Errorf("no preset configuration for provider: %s", providerName)
	}
}
