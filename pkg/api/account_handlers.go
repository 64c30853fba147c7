package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/middleware"
	"github.com/platinummonkey/kotoba/pkg/observability"
)

// AccountHandlers serves the signed-in user's profile and usage
type AccountHandlers struct {
	usage   UsageChecker
	devMode bool
}

// NewAccountHandlers creates account handlers
func NewAccountHandlers(usage UsageChecker, devMode bool) *AccountHandlers {
	return &AccountHandlers{usage: usage, devMode: devMode}
}

// RegisterRoutes registers account routes on an authenticated router
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/usage", h.getUsage).Methods("GET")
	router.HandleFunc("/me", h.getMe).Methods("GET")
}

// getUsage handles GET /api/usage. A ledger failure is reported as an error
// instead of a made-up count.
func (h *AccountHandlers) getUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "sign in required")
		return
	}

	result, err := h.usage.CheckUsageLimit(r.Context(), user.ID, user.Plan)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to read usage")
		httputil.WriteInternalError(w, err, h.devMode)
		return
	}

	httputil.WriteSuccess(w, UsageResponse{
		Current:   result.Current,
		Limit:     result.Limit,
		Remaining: result.Remaining(),
		Plan:      user.Plan,
	})
}

// getMe handles GET /api/me
func (h *AccountHandlers) getMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "sign in required")
		return
	}

	httputil.WriteSuccess(w, MeResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Image: user.Image,
		Plan:  user.Plan,
	})
}
