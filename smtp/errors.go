package smtp

import (
	"github.com/pkg/errors"
)

// connectionFailedMsg is the fixed guidance attached to every failure on
// the open path, regardless of which step produced it.
const connectionFailedMsg = "connection failed: check credentials or mail service configuration"

// Lifecycle misuse errors. A session is single-use: it is opened at most
// once and closed exactly once.
var (
	ErrSessionUsed    = errors.New("session already opened, construct a new one to retry")
	ErrSessionClosed  = errors.New("session already closed")
	ErrSessionNotOpen = errors.New("session is not open")
)

// ConfigError reports a configuration object that does not satisfy the
// required shape. It is returned before any I/O and is never retried.
type ConfigError struct {
	reason string
}

func newConfigError(reason string) *ConfigError {
	return &ConfigError{reason: reason}
}

func (e *ConfigError) Error() string {
	return "invalid mail configuration: " + e.reason
}

// ConnectionError reports a failure during TLS context setup, transport
// open, STARTTLS upgrade, greeting or authentication. It is terminal for
// the session and carries the underlying cause.
type ConnectionError struct {
	cause error
}

func newConnectionError(cause error) *ConnectionError {
	return &ConnectionError{cause: cause}
}

func (e *ConnectionError) Error() string {
	return connectionFailedMsg + ": " + e.cause.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// IsConnectionError reports whether err is, or wraps, a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
