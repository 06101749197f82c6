// Package httpapi serves a sessionauth.Engine over HTTP with cookie-carried tokens.
//
// Routes:
//
//	POST   /auth/register              201 public user, sets both cookies
//	POST   /auth/login                 sets both cookies
//	GET    /auth/logout                clears both cookies
//	GET    /auth/refresh               new access cookie, refresh cookie when rotated
//	GET    /auth/email/verify/{code}
//	POST   /auth/password/forgot
//	POST   /auth/password/reset        clears both cookies
//	GET    /user                       protected
//	POST   /user/resend-verification   protected
//	GET    /session/all                protected
//	DELETE /session/{id}               protected
//	GET    /health
//	GET    /metrics                    when WithMetricsHandler is set
//
// Request bodies are validated against embedded JSON schemas before the Engine is
// called. [WriteError] is the only place an error becomes a status code.
//
// Engine calls run on a context detached from the client connection and bounded by
// Config.OperationTimeout, so a client that disconnects mid-login still gets a
// consistent session store.
package httpapi
