// Package service contains the business logic between the HTTP handlers
// and the repositories.
//
// Services receive the caller's access.Scope explicitly; they never look
// up the session on their own.
package service
