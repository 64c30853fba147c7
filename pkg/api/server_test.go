package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/kotoba/pkg/billing"
	"github.com/platinummonkey/kotoba/pkg/contextkeys"
	"github.com/platinummonkey/kotoba/pkg/generation"
	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/usage"
	"github.com/platinummonkey/kotoba/pkg/users"
)

type fakeGeneration struct {
	err         error
	lastCaller  generation.Caller
	lastVideo   generation.VideoRequest
	lastText    generation.TextRequest
	historySize int
	records     map[string]*generation.Record
}

func (f *fakeGeneration) GenerateVideo(ctx context.Context, caller generation.Caller, req generation.VideoRequest) (*generation.VideoResponse, error) {
	f.lastCaller, f.lastVideo = caller, req
	if f.err != nil {
		return nil, f.err
	}
	return &generation.VideoResponse{
		ID:      "gen-1",
		VideoID: "dQw4w9WgXcQ",
		VideoContent: generation.VideoContent{
			TranslatedTitle:       "タイトル",
			TranslatedDescription: "説明",
			Hashtags:              []string{"#日本"},
			OptimalPostTime:       generation.DefaultOptimalPostTime,
			Transcript:            []generation.TranscriptLine{{English: "hi", Japanese: "やあ"}},
		},
	}, nil
}

func (f *fakeGeneration) GenerateText(ctx context.Context, caller generation.Caller, req generation.TextRequest) (*generation.TextResponse, error) {
	f.lastCaller, f.lastText = caller, req
	if f.err != nil {
		return nil, f.err
	}
	return &generation.TextResponse{
		ID:          "gen-2",
		TextContent: generation.TextContent{TranslatedText: "こんにちは", Hashtags: []string{}},
	}, nil
}

func (f *fakeGeneration) Get(ctx context.Context, userID, id string) (*generation.Record, error) {
	if record, ok := f.records[id]; ok && record.UserID == userID {
		return record, nil
	}
	return nil, generation.ErrNotFound
}

func (f *fakeGeneration) History(ctx context.Context, userID string, limit int) ([]*generation.Record, error) {
	f.historySize = limit
	if f.err != nil {
		return nil, f.err
	}
	return []*generation.Record{}, nil
}

type fakeUsage struct {
	result usage.Result
	err    error
}

func (f *fakeUsage) CheckUsageLimit(ctx context.Context, userID string, plan usage.Plan) (usage.Result, error) {
	return f.result, f.err
}

type fakeBilling struct {
	url        string
	err        error
	webhookErr error
	payload    []byte
	signature  string
}

func (f *fakeBilling) CreateCheckoutSession(ctx context.Context, user *users.User) (string, error) {
	return f.url, f.err
}

func (f *fakeBilling) CreatePortalSession(ctx context.Context, user *users.User) (string, error) {
	return f.url, f.err
}

func (f *fakeBilling) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	f.payload, f.signature = payload, signature
	return f.webhookErr
}

var testUser = &users.User{ID: "user-1", Email: "aiko@example.com", Name: "Aiko", Plan: usage.PlanFree}

// fakeAuth signs in testUser when the request carries a session cookie
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("kotoba_session"); err != nil {
			httputil.WriteUnauthorized(w, "sign in required")
			return
		}
		ctx := contextkeys.WithUser(r.Context(), testUser)
		ctx = contextkeys.WithUserID(ctx, testUser.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type serverFixture struct {
	server     *Server
	generation *fakeGeneration
	usage      *fakeUsage
	billing    *fakeBilling
	limited    int
}

func newServerFixture(t *testing.T, devMode bool) *serverFixture {
	t.Helper()
	f := &serverFixture{
		generation: &fakeGeneration{records: map[string]*generation.Record{
			"gen-9": {ID: "gen-9", UserID: "user-1", Pipeline: generation.PipelineText, Hashtags: []string{}},
			"gen-x": {ID: "gen-x", UserID: "user-2", Pipeline: generation.PipelineText},
		}},
		usage:   &fakeUsage{result: usage.Result{Current: 3, Limit: 10, Allowed: true}},
		billing: &fakeBilling{url: "https://checkout.stripe.com/c/pay/cs_test"},
	}
	f.server = NewServer(Options{
		Generation:   f.generation,
		Usage:        f.usage,
		Billing:      f.billing,
		Authenticate: fakeAuth,
		RateLimit: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				f.limited++
				next.ServeHTTP(w, r)
			})
		},
		Metrics: observability.NewNopMetrics(),
		DevMode: devMode,
	})
	return f
}

func (f *serverFixture) do(method, path string, body string, signedIn bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if signedIn {
		req.AddCookie(&http.Cookie{Name: "kotoba_session", Value: "sess-1"})
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.QuotaErrorResponse {
	t.Helper()
	var body httputil.QuotaErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const videoBody = `{"platform":"youtube","dialect":"kansai","videoUrl":"https://youtu.be/dQw4w9WgXcQ","subtitles":"hello"}`

func TestGenerateVideo_Success(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodPost, "/api/generate", videoBody, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get(httputil.RequestIDHeader))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gen-1", resp["id"])
	assert.Equal(t, "dQw4w9WgXcQ", resp["videoId"])
	assert.Equal(t, "タイトル", resp["translatedTitle"])
	assert.Equal(t, []interface{}{map[string]interface{}{"en": "hi", "ja": "やあ"}}, resp["transcript"])

	assert.Equal(t, generation.Caller{UserID: "user-1", Plan: "free"}, f.generation.lastCaller)
	assert.Equal(t, generation.DialectKansai, f.generation.lastVideo.Dialect)
	assert.Equal(t, 1, f.limited)
}

func TestGenerateText_Success(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodPost, "/api/generate/text", `{"originalText":"hello"}`, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":"gen-2","translatedText":"こんにちは","hashtags":[],"optimalPostTime":""}}`, w.Body.String())
	assert.Equal(t, "hello", f.generation.lastText.OriginalText)
	assert.Equal(t, 1, f.limited)
}

func TestGenerate_RequiresSession(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodPost, "/api/generate", videoBody, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, httputil.ReasonUnauthorized, decodeError(t, w).Error)
	assert.Zero(t, f.limited)
}

func TestGenerate_InvalidJSON(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodPost, "/api/generate", `{"platform":`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, httputil.ReasonInvalidInput, decodeError(t, w).Error)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{
			name:   "validation",
			err:    &generation.ValidationError{Field: "subtitles", Message: "subtitles is required"},
			status: http.StatusBadRequest,
			reason: httputil.ReasonInvalidInput,
		},
		{
			name:   "upstream unauthorized",
			err:    &generation.UpstreamError{Kind: generation.UpstreamUnauthorized, Status: 401, Err: errors.New("bad key")},
			status: http.StatusInternalServerError,
			reason: httputil.ReasonUpstreamUnauthorized,
		},
		{
			name:   "upstream rate limited",
			err:    &generation.UpstreamError{Kind: generation.UpstreamRateLimited, Status: 429, Err: errors.New("slow down")},
			status: http.StatusTooManyRequests,
			reason: httputil.ReasonUpstreamRateLimited,
		},
		{
			name:   "upstream failure",
			err:    &generation.UpstreamError{Kind: generation.UpstreamFailed, Status: 503, Err: errors.New("overloaded")},
			status: http.StatusBadGateway,
			reason: httputil.ReasonUpstreamError,
		},
		{
			name:   "malformed reply",
			err:    &generation.UpstreamError{Kind: generation.UpstreamMalformed, Err: errors.New("not json")},
			status: http.StatusBadGateway,
			reason: httputil.ReasonMalformedUpstreamResponse,
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			reason: httputil.ReasonInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t, false)
			f.generation.err = tt.err

			w := f.do(http.MethodPost, "/api/generate", videoBody, true)

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.reason, body.Error)
			assert.NotEmpty(t, body.Details)
		})
	}
}

func TestGenerate_ValidationDetails(t *testing.T) {
	f := newServerFixture(t, false)
	f.generation.err = &generation.ValidationError{Field: "platform", Message: "platform must be one of: youtube, tiktok, instagram"}

	w := f.do(http.MethodPost, "/api/generate", `{"platform":"myspace"}`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid_input","details":"platform must be one of: youtube, tiktok, instagram"}`, w.Body.String())
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	f := newServerFixture(t, false)
	f.generation.err = &usage.QuotaExceededError{Plan: usage.PlanFree, Current: 10, Limit: 10}

	w := f.do(http.MethodPost, "/api/generate", videoBody, true)

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, httputil.ReasonQuotaExceeded, body.Error)
	assert.Equal(t, 10, body.Current)
	assert.Equal(t, 10, body.Limit)
}

func TestInternalErrorDetails_DevMode(t *testing.T) {
	hidden := newServerFixture(t, false)
	hidden.generation.err = errors.New("pq: relation does not exist")
	w := hidden.do(http.MethodPost, "/api/generate", videoBody, true)
	assert.NotContains(t, w.Body.String(), "relation does not exist")

	shown := newServerFixture(t, true)
	shown.generation.err = errors.New("pq: relation does not exist")
	w = shown.do(http.MethodPost, "/api/generate", videoBody, true)
	assert.Contains(t, w.Body.String(), "relation does not exist")
}

func TestListGenerations_Limit(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodGet, "/api/generations", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"generations":[]}`, w.Body.String())
	assert.Equal(t, DefaultHistoryLimit, f.generation.historySize)

	w = f.do(http.MethodGet, "/api/generations?limit=100", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, f.generation.historySize)

	for _, bad := range []string{"0", "101", "-1", "ten"} {
		w = f.do(http.MethodGet, "/api/generations?limit="+bad, "", true)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", bad)
	}
	assert.Zero(t, f.limited)
}

func TestGetGeneration(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodGet, "/api/generations/gen-9", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"gen-9"`)

	// another user's record is indistinguishable from a missing one
	w = f.do(http.MethodGet, "/api/generations/gen-x", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, httputil.ReasonNotFound, decodeError(t, w).Error)
}

func TestGetUsage(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodGet, "/api/usage", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"current":3,"limit":10,"remaining":7,"plan":"free"}`, w.Body.String())
}

func TestGetUsage_OverLimitRemainingIsZero(t *testing.T) {
	f := newServerFixture(t, false)
	f.usage.result = usage.Result{Current: 12, Limit: 10}

	w := f.do(http.MethodGet, "/api/usage", "", true)

	assert.JSONEq(t, `{"current":12,"limit":10,"remaining":0,"plan":"free"}`, w.Body.String())
}

func TestGetUsage_LedgerFailure(t *testing.T) {
	f := newServerFixture(t, false)
	f.usage.err = errors.New("connection refused")

	w := f.do(http.MethodGet, "/api/usage", "", true)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, httputil.ReasonInternalError, decodeError(t, w).Error)
}

func TestGetMe(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodGet, "/api/me", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"user-1","email":"aiko@example.com","name":"Aiko","plan":"free"}`, w.Body.String())
}

func TestCheckoutAndPortal(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodPost, "/api/stripe/create-checkout", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.com/c/pay/cs_test"}`, w.Body.String())

	f.billing.err = billing.ErrNoBillingAccount
	w = f.do(http.MethodPost, "/api/stripe/portal", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.billing.err = billing.ErrNotConfigured
	w = f.do(http.MethodPost, "/api/stripe/create-checkout", "", true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = f.do(http.MethodPost, "/api/stripe/create-checkout", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func webhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"processed", nil, http.StatusOK},
		{"missing signature", billing.ErrMissingSignature, http.StatusBadRequest},
		{"bad signature", &billing.SignatureError{Err: errors.New("mismatch")}, http.StatusBadRequest},
		{"not configured", billing.ErrWebhookNotConfigured, http.StatusInternalServerError},
		{"apply failed", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t, false)
			f.billing.webhookErr = tt.err

			// no session cookie: the webhook is authenticated by signature
			w := httptest.NewRecorder()
			f.server.ServeHTTP(w, webhookRequest([]byte(`{"id":"evt_1"}`), "t=1,v1=abc"))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "t=1,v1=abc", f.billing.signature)
			assert.Equal(t, `{"id":"evt_1"}`, string(f.billing.payload))
			if tt.err == nil {
				assert.JSONEq(t, `{"received":true}`, w.Body.String())
			}
		})
	}
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	f := newServerFixture(t, false)

	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, webhookRequest(bytes.Repeat([]byte("a"), billing.MaxWebhookBytes+1), "t=1,v1=abc"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, f.billing.payload)
}

func TestUnknownRoute(t *testing.T) {
	f := newServerFixture(t, false)

	w := f.do(http.MethodGet, "/nope", "", false)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, httputil.ReasonNotFound, decodeError(t, w).Error)
}
