// Package httputil provides the JSON response, request parsing and middleware
// helpers shared by kotoba's HTTP handlers.
//
// # Error bodies
//
// Every error response is {"error": "<reason>", "details": "<text>"}:
//
//	httputil.WriteBadRequest(w, "subtitles is required")
//	httputil.WriteQuotaExceeded(w, "monthly generation limit reached", 10, 10)
//	httputil.WriteInternalError(w, err, cfg.DevMode)
//
// Internal error text only reaches the client in development mode.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: session authentication and rate limiting
package httputil
