// Package mail sends the transactional email the auth flows need. Delivery
// is a collaborator concern: callers decide whether a failure is fatal.
package mail

import "context"

// Mailer delivers the three transactional messages the auth engine sends.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
	SendWelcomeEmail(ctx context.Context, email, name string) error
}
