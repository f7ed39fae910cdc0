// Package handler is the HTTP layer of the annotation service.
//
// Handlers bind and validate requests with the validation package, read the
// caller's access scope from the auth middleware, call the services and
// shape the JSON responses.
package handler
