// Package transport defines the outbound email collaborator contract.
//
// Courier never talks to an SMTP server or provider API itself; the
// worker hands fully rendered messages to a Sender supplied by the
// host application.
package transport

import "context"

// Sender delivers one rendered message and returns the provider's
// delivery identifier.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) (deliveryID string, err error)
}

// Func adapts a function to the Sender interface.
type Func func(ctx context.Context, to, subject, html string) (string, error)

// Send implements Sender.
func (f Func) Send(ctx context.Context, to, subject, html string) (string, error) {
	return f(ctx, to, subject, html)
}
