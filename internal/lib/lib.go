// Package lib groups the integrations that sit beside the layers: the
// asynq background jobs in lib/job and the Resend email client in
// lib/email.
package lib
