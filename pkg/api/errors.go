package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/kotoba/pkg/generation"
	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/usage"
)

// writeServiceError maps a service error onto the {error, details} body
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, devMode bool) {
	var validationErr *generation.ValidationError
	if errors.As(err, &validationErr) {
		httputil.WriteBadRequest(w, validationErr.Message)
		return
	}

	if quotaErr, ok := usage.AsQuotaExceeded(err); ok {
		httputil.WriteQuotaExceeded(w, quotaErr.Error(), quotaErr.Current, quotaErr.Limit)
		return
	}

	if upstreamErr, ok := generation.AsUpstreamError(err); ok {
		writeUpstreamError(w, upstreamErr, devMode)
		return
	}

	if errors.Is(err, generation.ErrNotFound) {
		httputil.WriteNotFound(w, err.Error())
		return
	}

	observability.FromContext(r.Context()).WithError(err).Error("request failed")
	httputil.WriteInternalError(w, err, devMode)
}

func writeUpstreamError(w http.ResponseWriter, err *generation.UpstreamError, devMode bool) {
	details := upstreamDetails(err.Kind)
	if devMode {
		details = err.Error()
	}

	switch err.Kind {
	case generation.UpstreamUnauthorized:
		// our API key was rejected: a configuration problem, not the caller's
		httputil.WriteError(w, http.StatusInternalServerError, httputil.ReasonUpstreamUnauthorized, details)
	case generation.UpstreamRateLimited:
		httputil.WriteError(w, http.StatusTooManyRequests, httputil.ReasonUpstreamRateLimited, details)
	case generation.UpstreamMalformed:
		httputil.WriteError(w, http.StatusBadGateway, httputil.ReasonMalformedUpstreamResponse, details)
	default:
		httputil.WriteError(w, http.StatusBadGateway, httputil.ReasonUpstreamError, details)
	}
}

func upstreamDetails(kind generation.UpstreamKind) string {
	switch kind {
	case generation.UpstreamUnauthorized:
		return "the language model service rejected our credentials"
	case generation.UpstreamRateLimited:
		return "the language model service is busy, please retry shortly"
	case generation.UpstreamMalformed:
		return "the language model returned an unusable response"
	default:
		return "the language model service failed"
	}
}
