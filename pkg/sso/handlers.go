package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/users"
)

// Cookie names
const (
	SessionCookieName   = "kotoba_session"
	stateCookieName     = "kotoba_oauth_state"
	returnURLCookieName = "kotoba_return_url"
)

// DefaultReturnURL is where the browser lands after signing in
const DefaultReturnURL = "/dashboard"

// stateCookieMaxAge bounds how long a login attempt may take
const stateCookieMaxAge = 600

// UserProvisioner creates or refreshes the local user for a sign-in
type UserProvisioner interface {
	FindOrCreateByEmail(ctx context.Context, profile users.Profile) (*users.User, bool, error)
}

// Handlers handles sign-in HTTP requests
type Handlers struct {
	providers      map[ProviderName]Provider
	provisioner    UserProvisioner
	sessionManager *SessionManager
	secureCookies  bool
	metrics        *observability.Metrics
}

// NewHandlers creates a new sign-in handlers instance
func NewHandlers(providers []Provider, provisioner UserProvisioner, sessionManager *SessionManager, secureCookies bool, metrics *observability.Metrics) *Handlers {
	byName := make(map[ProviderName]Provider, len(providers))
	for _, p := range providers {
		byName[p.GetName()] = p
	}
	return &Handlers{
		providers:      byName,
		provisioner:    provisioner,
		sessionManager: sessionManager,
		secureCookies:  secureCookies,
		metrics:        metrics,
	}
}

// RegisterRoutes registers sign-in routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/providers", h.listProviders).Methods("GET")
	router.HandleFunc("/auth/logout", h.logout).Methods("GET", "POST")
	router.HandleFunc("/auth/{provider}/login", h.initiateLogin).Methods("GET")
	router.HandleFunc("/auth/{provider}/callback", h.handleCallback).Methods("GET")
}

// listProviders handles GET /auth/providers
func (h *Handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, string(name))
	}
	sort.Strings(names)
	httputil.WriteSuccess(w, map[string][]string{"providers": names})
}

// initiateLogin handles GET /auth/{provider}/login
func (h *Handlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[ProviderName(mux.Vars(r)["provider"])]
	if !ok {
		httputil.WriteNotFound(w, "sign-in provider not found")
		return
	}

	state, err := generateState()
	if err != nil {
		httputil.WriteInternalError(w, err, false)
		return
	}

	h.setCookie(w, stateCookieName, state, stateCookieMaxAge)
	if returnURL := safeReturnURL(r.URL.Query().Get("return_url")); returnURL != "" {
		h.setCookie(w, returnURLCookieName, returnURL, stateCookieMaxAge)
	}

	if err := provider.InitiateLogin(w, r, state); err != nil {
		httputil.WriteInternalError(w, err, false)
	}
}

// handleCallback handles GET /auth/{provider}/callback
func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	providerName := ProviderName(mux.Vars(r)["provider"])
	provider, ok := h.providers[providerName]
	if !ok {
		httputil.WriteNotFound(w, "sign-in provider not found")
		return
	}
	logger := observability.FromContext(r.Context()).WithField("provider", providerName)

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		httputil.WriteBadRequest(w, "missing state cookie")
		return
	}
	if state := r.URL.Query().Get("state"); state == "" || state != stateCookie.Value {
		h.metrics.RecordSignIn(string(providerName), "invalid_state")
		httputil.WriteBadRequest(w, "invalid state parameter")
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.metrics.RecordSignIn(string(providerName), "denied")
		httputil.WriteUnauthorized(w, "sign-in was cancelled: "+errParam)
		return
	}

	ssoUser, err := provider.HandleCallback(r)
	if err != nil {
		logger.WithError(err).Warn("sign-in callback failed")
		h.metrics.RecordSignIn(string(providerName), "failed")
		if errors.Is(err, ErrMissingEmail) {
			httputil.WriteUnauthorized(w, ErrMissingEmail.Error())
			return
		}
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	user, created, err := h.provisioner.FindOrCreateByEmail(r.Context(), users.Profile{
		Email: ssoUser.Email,
		Name:  ssoUser.FullName,
		Image: ssoUser.AvatarURL,
	})
	if err != nil {
		logger.WithError(err).Error("failed to provision user")
		h.metrics.RecordSignIn(string(providerName), "failed")
		httputil.WriteInternalError(w, err, false)
		return
	}

	session, err := h.sessionManager.CreateSession(r.Context(), user.ID, providerName)
	if err != nil {
		logger.WithError(err).Error("failed to create session")
		h.metrics.RecordSignIn(string(providerName), "failed")
		httputil.WriteInternalError(w, err, false)
		return
	}

	logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"created": created,
	}).Info("user signed in")
	h.metrics.RecordSignIn(string(providerName), "success")

	h.setCookie(w, SessionCookieName, session.ID, int(h.sessionManager.TTL()/time.Second))
	h.clearCookie(w, stateCookieName)

	returnURL := DefaultReturnURL
	if returnCookie, err := r.Cookie(returnURLCookieName); err == nil {
		if safe := safeReturnURL(returnCookie.Value); safe != "" {
			returnURL = safe
		}
		h.clearCookie(w, returnURLCookieName)
	}

	http.Redirect(w, r, returnURL, http.StatusFound)
}

// logout handles GET/POST /auth/logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if sessionCookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.sessionManager.DeleteSession(r.Context(), sessionCookie.Value); err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("failed to delete session on logout")
		}
	}

	h.clearCookie(w, SessionCookieName)

	if r.Method == http.MethodPost {
		httputil.WriteNoContent(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handlers) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *Handlers) clearCookie(w http.ResponseWriter, name string) {
	h.setCookie(w, name, "", -1)
}

func generateState() (string, error) {
	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}

// safeReturnURL only allows same-site absolute paths
func safeReturnURL(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	return raw
}
