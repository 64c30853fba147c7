// Package sso signs users in with GitHub (OAuth2) or Google (OpenID Connect).
//
// # Login flow
//
//	GET /auth/{provider}/login      sets a state cookie and redirects to the provider
//	GET /auth/{provider}/callback   checks state, fetches the profile, provisions the user
//	POST /auth/logout               deletes the session and clears the cookie
//
// Providers must return an email address; sign-in is refused otherwise. The
// user is found or created by email through a UserProvisioner (pkg/users).
//
// # Sessions
//
// A successful callback creates a row in the sessions table and sets the
// kotoba_session cookie. SessionManager caches session rows in an expirable
// LRU; the user's plan is never cached and is re-read per request by
// middleware.SessionAuth.
//
//	sm := sso.NewSessionManager(db, sso.SessionConfig{}, logger)
//	session, err := sm.GetSession(ctx, cookie.Value)
//
// Expired sessions are removed by the kotoba-janitor binary.
package sso
