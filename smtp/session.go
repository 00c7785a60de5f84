// Package smtp manages a single outbound SMTP connection: it opens the
// transport in the configured encryption mode (plain, implicit TLS or a
// STARTTLS upgrade), optionally authenticates, and tears the connection
// down exactly once. The wire protocol itself is delegated to net/smtp.
package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"sync"

	"github.com/pkg/errors"

	"github.com/pure-golang/mailconn"
)

var _ mailconn.Session = (*Session)(nil)

type sessionState int

const (
	statePending sessionState = iota
	stateConfigured
	stateFailed
	stateClosed
)

// Session owns exactly one underlying SMTP connection for its lifetime.
// Sessions are single-use: Open at most once, Close exactly once; after a
// failed Open the session is terminal and a new one must be constructed.
type Session struct {
	mx     sync.Mutex
	cfg    Config
	logger *slog.Logger

	transport transport
	auth      authenticator

	client *smtp.Client
	state  sessionState
}

// SessionOptions contains optional collaborators for a Session.
type SessionOptions struct {
	// Logger overrides slog.Default as the base logger.
	Logger *slog.Logger
}

// New validates cfg and constructs a Session around an immutable snapshot
// of it. No I/O happens here; a ConfigError means the configuration does
// not satisfy the required shape and is never retried.
func New(cfg Config, opts *SessionOptions) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base *slog.Logger
	if opts != nil {
		base = opts.Logger
	}

	var tr transport = plainTransport{}
	if cfg.UseSSL {
		tr = implicitTLSTransport{}
	}

	return &Session{
		cfg:       cfg,
		logger:    newLogger(base),
		transport: tr,
		auth:      newAuthenticator(cfg.AuthMethod),
		state:     statePending,
	}, nil
}

// Open establishes the session: it builds a fresh TLS context, opens the
// transport in the configured mode, upgrades via STARTTLS when requested,
// exchanges the greeting and authenticates. In suppressed mode it performs
// no network I/O at all and the session still reports itself as open so
// callers can exercise send logic in tests.
//
// When both UseSSL and UseTLS are set, the STARTTLS negotiation runs on
// top of the already encrypted transport. That layering is unusual and
// almost never what a caller wants, but it is kept as-is rather than
// second-guessed here.
//
// Any failure returns a ConnectionError carrying the cause; the session
// becomes terminal with no handle held.
func (s *Session) Open(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "Open", s.cfg)
	defer span.End()
	defer func() { recordError(span, err) }()

	s.mx.Lock()
	defer s.mx.Unlock()

	switch s.state {
	case statePending:
	case stateClosed:
		return ErrSessionClosed
	default:
		return ErrSessionUsed
	}

	if err := s.open(ctx); err != nil {
		s.state = stateFailed
		s.client = nil
		sessionOpenFailures.WithLabelValues(connectionMode(s.cfg)).Inc()
		s.logger.Error("failed to open mail session",
			"server", s.cfg.Server, "port", s.cfg.Port, "error", err.Error())
		return newConnectionError(err)
	}

	s.state = stateConfigured
	sessionsOpened.WithLabelValues(connectionMode(s.cfg)).Inc()
	return nil
}

func (s *Session) open(ctx context.Context) error {
	tlsCfg, err := newTLSConfig(s.cfg)
	if err != nil {
		return err
	}
	if s.cfg.ValidateCerts {
		s.logger.Debug("certificate validation enabled, verifying chain and hostname")
	} else {
		s.logger.Debug("certificate validation disabled by configuration")
	}

	if s.cfg.SuppressSend {
		// Dry-run mode: the TLS context and session object exist, but
		// nothing is dialed.
		s.logger.Debug("suppress send set, skipping connection entirely")
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	s.logger.Debug("connecting to mail server", "addr", addr, "ssl", s.cfg.UseSSL)

	client, err := s.transport.connect(ctx, addr, tlsCfg)
	if err != nil {
		return err
	}

	if s.cfg.UseTLS {
		s.logger.Debug("beginning starttls negotiation")
		if err := client.StartTLS(tlsCfg); err != nil {
			_ = client.Close()
			return errors.Wrap(err, "failed to start tls")
		}
	}

	// The dial consumed the 220 greeting; a NOOP round-trip confirms the
	// exchange before credentials are sent.
	if err := client.Noop(); err != nil {
		_ = client.Close()
		return errors.Wrap(err, "greeting exchange failed")
	}

	if s.cfg.UseCredentials {
		s.logger.Debug("authenticating", "username", s.cfg.Username, "method", s.cfg.AuthMethod)
		auth := s.auth.auth(s.cfg.Username, s.cfg.Password, s.cfg.Server)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return errors.Wrap(err, "failed to authenticate")
		}
	}

	s.client = client
	return nil
}

// Close terminates the session. It must be called exactly once on every
// exit path of the scope that called Open; a second call is an error. In
// suppressed mode nothing was opened and Close only transitions state.
func (s *Session) Close() (err error) {
	_, span := startSpan(context.Background(), "Close", s.cfg)
	defer span.End()
	defer func() { recordError(span, err) }()

	s.mx.Lock()
	defer s.mx.Unlock()

	switch s.state {
	case stateConfigured:
	case stateClosed:
		return ErrSessionClosed
	default:
		return ErrSessionNotOpen
	}

	s.state = stateClosed
	sessionsClosed.Inc()

	if s.cfg.SuppressSend {
		return nil
	}

	client := s.client
	s.client = nil
	if err := client.Quit(); err != nil {
		_ = client.Close()
		return errors.Wrap(err, "failed to quit mail session")
	}

	s.logger.Debug("mail session closed", "server", s.cfg.Server)
	return nil
}

// Client returns the underlying SMTP handle while the session is open.
// It returns nil before Open succeeds, after Close, and in suppressed mode.
func (s *Session) Client() *smtp.Client {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.state != stateConfigured {
		return nil
	}
	return s.client
}

// With runs fn against an opened session and guarantees Close on every
// exit path, including a panic inside fn. The Close error is reported only
// when fn itself succeeded.
func With(ctx context.Context, cfg Config, fn func(ctx context.Context, s *Session) error) (err error) {
	session, err := New(cfg, nil)
	if err != nil {
		return err
	}
	if err := session.Open(ctx); err != nil {
		return err
	}
	defer func() {
		closeErr := session.Close()
		if err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, session)
}
