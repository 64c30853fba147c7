// Package middleware provides session authentication and per-user rate
// limiting for the /api routes.
//
// Ordering matters: SessionAuth must run before RateLimitMiddleware so the
// limiter keys on the user id instead of the client address.
//
//	auth := middleware.NewSessionAuth(sessionManager, userStore, devMode)
//	limiter := middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
//		RequestsPerWindow: 20,
//		WindowDuration:    time.Minute,
//	}, "")
//	api.Use(auth.Handler)
//	generate.Use(middleware.NewRateLimitMiddleware(limiter, metrics).Handler)
//
// The rate limiter is a Redis fixed window. It fails open: when Redis is
// unreachable requests are allowed and a warning is logged.
package middleware
