// Package middleware holds the Echo middleware of the HTTP API: request
// ids, request-scoped logging, New Relic tracing, Clerk authentication,
// rate limiting and the global error handler.
package middleware
