// Package mailconn manages the lifecycle of a single outbound SMTP
// connection: encryption mode selection (implicit TLS or STARTTLS),
// handshake sequencing, optional authentication, and guaranteed teardown.
//
// The real implementation lives in the smtp subpackage; the noop
// subpackage provides a do-nothing Session for consumer unit tests.
package mailconn

import (
	"context"
	"net/smtp"
)

// Session is a single-use mail transport session. A Session is opened at
// most once, used, and closed exactly once; any failure during Open is
// terminal and the caller must construct a new Session to retry.
type Session interface {
	// Open establishes the transport, negotiates encryption and
	// authenticates according to the session's configuration.
	Open(ctx context.Context) error

	// Close terminates the transport. It must be called exactly once,
	// on every exit path of the scope that called Open.
	Close() error

	// Client returns the underlying SMTP handle while the session is
	// open, so a higher-level sending collaborator can use it directly.
	// It returns nil before Open, after Close, and in suppressed mode.
	Client() *smtp.Client
}
