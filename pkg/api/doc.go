// Package api provides the kotoba HTTP API.
//
// # Endpoints
//
//	POST /api/generate                localize a video (platform, dialect, videoUrl, subtitles)
//	POST /api/generate/text           localize a plain-text post ({success, data})
//	GET  /api/generations             caller's history, newest first (?limit=1..100)
//	GET  /api/generations/{id}        one of the caller's generations
//	GET  /api/usage                   {current, limit, remaining, plan}
//	GET  /api/me                      signed-in user
//	POST /api/stripe/create-checkout  {url} of a premium checkout page
//	POST /api/stripe/portal           {url} of the billing portal
//	POST /api/stripe/webhook          Stripe events (signature authenticated)
//
// Sign-in routes under /auth are registered from pkg/sso.
//
// # Errors
//
// Every error body is {"error": reason, "details": text}. Quota errors add
// current and limit. Internal error text only reaches details in dev mode.
//
//	invalid_input                400
//	unauthorized                 401
//	quota_exceeded               403
//	not_found                    404
//	rate_limited                 429  local per-user limiter
//	upstream_rate_limited        429
//	upstream_unauthorized        500  our model API key was rejected
//	internal_error               500
//	upstream_error               502
//	malformed_upstream_response  502
package api
