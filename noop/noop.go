// Package noop provides a Session that performs no I/O, for unit tests of
// code that consumes mailconn.Session.
package noop

import (
	"context"
	"net/smtp"

	"github.com/pure-golang/mailconn"
)

var _ mailconn.Session = (*Session)(nil)

// Session is a no-op mail session.
type Session struct {
	opened bool
	closed bool
}

// NewSession creates a new no-op Session.
func NewSession() *Session {
	return &Session{}
}

// Open records that the session was opened.
func (s *Session) Open(_ context.Context) error {
	s.opened = true
	return nil
}

// Close records that the session was closed.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

// Client always returns nil; there is no underlying connection.
func (s *Session) Client() *smtp.Client {
	return nil
}

// Opened reports whether Open was called.
func (s *Session) Opened() bool { return s.opened }

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.closed }
