package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/kotoba/pkg/generation"
	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/middleware"
)

// GenerationHandlers handles generation HTTP requests
type GenerationHandlers struct {
	service   GenerationService
	rateLimit func(http.Handler) http.Handler
	devMode   bool
}

// NewGenerationHandlers creates generation handlers. rateLimit may be nil.
func NewGenerationHandlers(service GenerationService, rateLimit func(http.Handler) http.Handler, devMode bool) *GenerationHandlers {
	if rateLimit == nil {
		rateLimit = func(next http.Handler) http.Handler { return next }
	}
	return &GenerationHandlers{
		service:   service,
		rateLimit: rateLimit,
		devMode:   devMode,
	}
}

// RegisterRoutes registers generation routes on an authenticated router
func (h *GenerationHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/generate", h.rateLimit(http.HandlerFunc(h.generateVideo))).Methods("POST")
	router.Handle("/generate/text", h.rateLimit(http.HandlerFunc(h.generateText))).Methods("POST")
	router.HandleFunc("/generations", h.listGenerations).Methods("GET")
	router.HandleFunc("/generations/{id}", h.getGeneration).Methods("GET")
}

// generateVideo handles POST /api/generate
func (h *GenerationHandlers) generateVideo(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	var req generation.VideoRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.GenerateVideo(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, r, err, h.devMode)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// generateText handles POST /api/generate/text
func (h *GenerationHandlers) generateText(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	var req generation.TextRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.GenerateText(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, r, err, h.devMode)
		return
	}
	httputil.WriteSuccess(w, TextGenerationResponse{Success: true, Data: resp})
}

// listGenerations handles GET /api/generations
func (h *GenerationHandlers) listGenerations(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", DefaultHistoryLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit < 1 || limit > MaxHistoryLimit {
		httputil.WriteBadRequest(w, fmt.Sprintf("limit must be between 1 and %d", MaxHistoryLimit))
		return
	}

	records, err := h.service.History(r.Context(), caller.UserID, limit)
	if err != nil {
		writeServiceError(w, r, err, h.devMode)
		return
	}
	httputil.WriteSuccess(w, HistoryResponse{Generations: records})
}

// getGeneration handles GET /api/generations/{id}
func (h *GenerationHandlers) getGeneration(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	record, err := h.service.Get(r.Context(), caller.UserID, id)
	if err != nil {
		writeServiceError(w, r, err, h.devMode)
		return
	}
	httputil.WriteSuccess(w, record)
}

// callerFromRequest reads the user set by SessionAuth
func callerFromRequest(w http.ResponseWriter, r *http.Request) (generation.Caller, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "sign in required")
		return generation.Caller{}, false
	}
	return generation.Caller{UserID: user.ID, Plan: string(user.Plan)}, true
}
