package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
)

// OAuth2Provider implements plain OAuth2 sign-in with a profile endpoint
type OAuth2Provider struct {
	config       *ProviderConfig
	oauth2Config *oauth2.Config
}

// NewOAuth2Provider creates a new OAuth2 provider
func NewOAuth2Provider(config *ProviderConfig) (*OAuth2Provider, error) {
	oauth2Cfg := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  config.AuthURL,
			TokenURL: config.TokenURL,
		},
		RedirectURL: config.RedirectURL,
		Scopes:      config.Scopes,
	}

	return &OAuth2Provider{
		config:       config,
		oauth2Config: oauth2Cfg,
	}, nil
}

// GetType returns the provider type
func (p *OAuth2Provider) GetType() ProviderType {
	return ProviderTypeOAuth2
}

// GetName returns the provider name
func (p *OAuth2Provider) GetName() ProviderName {
	return p.config.Name
}

// InitiateLogin redirects to the OAuth2 authorization endpoint
func (p *OAuth2Provider) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	http.Redirect(w, r, p.oauth2Config.AuthCodeURL(state), http.StatusFound)
	return nil
}

// HandleCallback processes the OAuth2 callback
func (p *OAuth2Provider) HandleCallback(r *http.Request) (*SSOUser, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	ctx := r.Context()
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	client := p.oauth2Config.Client(ctx, token)

	var userInfo map[string]interface{}
	if err := getJSON(ctx, client, p.config.UserInfoURL, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	mapping := p.config.AttributeMapping
	ssoUser := &SSOUser{
		Provider:   p.config.Name,
		ExternalID: getStringValue(userInfo, mapping.UserID),
		Email:      getStringValue(userInfo, mapping.Email),
		FullName:   getStringValue(userInfo, mapping.FullName),
		AvatarURL:  getStringValue(userInfo, mapping.Avatar),
	}

	// Private GitHub emails are only available from the emails endpoint
	if ssoUser.Email == "" && p.config.EmailsURL != "" {
		email, err := p.primaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
		ssoUser.Email = email
	}

	if ssoUser.ExternalID == "" {
		return nil, fmt.Errorf("missing user ID in OAuth2 response")
	}
	if ssoUser.Email == "" {
		return nil, ErrMissingEmail
	}

	return ssoUser, nil
}

type accountEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// primaryEmail returns the primary verified address, or "" when there is none
func (p *OAuth2Provider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []accountEmail
	if err := getJSON(ctx, client, p.config.EmailsURL, &emails); err != nil {
		return "", fmt.Errorf("failed to fetch user emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

// ValidateConfig validates the OAuth2 configuration
func (p *OAuth2Provider) ValidateConfig() error {
	cfg := p.config

	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if cfg.AuthURL == "" {
		return fmt.Errorf("auth_url is required")
	}
	if cfg.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if cfg.UserInfoURL == "" {
		return fmt.Errorf("user_info_url is required")
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}

	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Helper functions

func getStringValue(data map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	switch val := data[key].(type) {
	case string:
		return val
	case float64:
		// numeric ids such as GitHub's
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
