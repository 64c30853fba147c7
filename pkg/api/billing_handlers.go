package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/kotoba/pkg/billing"
	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/middleware"
	"github.com/platinummonkey/kotoba/pkg/observability"
)

// BillingHandlers handles Stripe checkout, portal and webhook requests
type BillingHandlers struct {
	billing BillingService
	devMode bool
}

// NewBillingHandlers creates billing handlers
func NewBillingHandlers(billingService BillingService, devMode bool) *BillingHandlers {
	return &BillingHandlers{billing: billingService, devMode: devMode}
}

// RegisterRoutes registers the session-authenticated billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stripe/create-checkout", h.createCheckout).Methods("POST")
	router.HandleFunc("/stripe/portal", h.createPortal).Methods("POST")
}

// RegisterWebhookRoute registers the signature-authenticated webhook route.
// It must be registered outside the session-authenticated subrouter.
func (h *BillingHandlers) RegisterWebhookRoute(router *mux.Router) {
	router.HandleFunc("/api/stripe/webhook", h.handleWebhook).Methods("POST")
}

// createCheckout handles POST /api/stripe/create-checkout
func (h *BillingHandlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "sign in required")
		return
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), user)
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, URLResponse{URL: url})
}

// createPortal handles POST /api/stripe/portal
func (h *BillingHandlers) createPortal(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "sign in required")
		return
	}

	url, err := h.billing.CreatePortalSession(r.Context(), user)
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, URLResponse{URL: url})
}

// handleWebhook handles POST /api/stripe/webhook
func (h *BillingHandlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, billing.MaxWebhookBytes))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read webhook body")
		return
	}

	err = h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		httputil.WriteSuccess(w, WebhookResponse{Received: true})
	case errors.Is(err, billing.ErrMissingSignature):
		httputil.WriteBadRequest(w, err.Error())
	case billing.IsSignatureError(err):
		observability.FromContext(r.Context()).WithError(err).Warn("rejected stripe webhook")
		httputil.WriteBadRequest(w, "webhook signature verification failed")
	case errors.Is(err, billing.ErrWebhookNotConfigured):
		observability.FromContext(r.Context()).Error("stripe webhook received but no secret is configured")
		httputil.WriteInternalError(w, err, h.devMode)
	default:
		// 5xx makes Stripe redeliver
		httputil.WriteInternalError(w, err, h.devMode)
	}
}

func (h *BillingHandlers) writeBillingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, billing.ErrNoBillingAccount):
		httputil.WriteBadRequest(w, "no billing account yet, subscribe first")
	case errors.Is(err, billing.ErrNotConfigured):
		observability.FromContext(r.Context()).Error("billing requested but stripe is not configured")
		httputil.WriteInternalError(w, err, h.devMode)
	default:
		observability.FromContext(r.Context()).WithError(err).Error("stripe request failed")
		httputil.WriteInternalError(w, err, h.devMode)
	}
}
