package api

import (
	"context"

	"github.com/platinummonkey/kotoba/pkg/generation"
	"github.com/platinummonkey/kotoba/pkg/usage"
	"github.com/platinummonkey/kotoba/pkg/users"
)

// Pagination for GET /api/generations
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// GenerationService runs and looks up generations
type GenerationService interface {
	GenerateVideo(ctx context.Context, caller generation.Caller, req generation.VideoRequest) (*generation.VideoResponse, error)
	GenerateText(ctx context.Context, caller generation.Caller, req generation.TextRequest) (*generation.TextResponse, error)
	Get(ctx context.Context, userID, id string) (*generation.Record, error)
	History(ctx context.Context, userID string, limit int) ([]*generation.Record, error)
}

// UsageChecker reports the caller's usage for the current period
type UsageChecker interface {
	CheckUsageLimit(ctx context.Context, userID string, plan usage.Plan) (usage.Result, error)
}

// BillingService talks to Stripe
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, user *users.User) (string, error)
	CreatePortalSession(ctx context.Context, user *users.User) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// UsageResponse is returned by GET /api/usage
type UsageResponse struct {
	Current   int        `json:"current"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	Plan      usage.Plan `json:"plan"`
}

// MeResponse is returned by GET /api/me
type MeResponse struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name,omitempty"`
	Image string     `json:"image,omitempty"`
	Plan  usage.Plan `json:"plan"`
}

// HistoryResponse is returned by GET /api/generations
type HistoryResponse struct {
	Generations []*generation.Record `json:"generations"`
}

// TextGenerationResponse wraps the plain-text pipeline result in the
// {success, data} envelope its clients read.
type TextGenerationResponse struct {
	Success bool                     `json:"success"`
	Data    *generation.TextResponse `json:"data"`
}

// URLResponse carries a Stripe hosted page URL
type URLResponse struct {
	URL string `json:"url"`
}

// WebhookResponse acknowledges a Stripe webhook
type WebhookResponse struct {
	Received bool `json:"received"`
}
