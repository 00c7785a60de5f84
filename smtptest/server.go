// Package smtptest runs an in-process SMTP server so session tests can
// exercise real connect, STARTTLS, AUTH and QUIT exchanges and then
// inspect what the server saw.
package smtptest

import (
	"crypto/tls"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// Login records one AUTH exchange observed by the server.
type Login struct {
	Username string
	Password string
}

// messageData keeps a received message body with its arrival timestamp.
type messageData struct {
	created time.Time
	body    string
}

// Options control the test server's behavior.
type Options struct {
	// TLSConfig, when set, makes the server advertise and accept STARTTLS.
	TLSConfig *tls.Config

	// AllowAnonymous accepts sessions without AUTH.
	AllowAnonymous bool

	// Username/Password, when set, are the only accepted credentials;
	// otherwise any non-empty pair is accepted.
	Username string
	Password string
}

// Server is an in-process SMTP server backed by an in-memory store.
// Initialize it via NewServer.
type Server struct {
	srv      *smtp.Server
	store    *store
	listener net.Listener
}

// store retains received messages and logins. Goroutine safe, since the
// server handles each connection on its own goroutine.
type store struct {
	mu       sync.Mutex
	opts     Options
	messages []messageData
	logins   []Login
}

// NewServer creates a Server listening on an ephemeral localhost port.
// Call Start to begin serving and Close when done.
func NewServer(opts Options) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	st := &store{opts: opts}

	srv := smtp.NewServer(&backend{store: st})
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true // tests drive AUTH over plaintext on purpose
	srv.AuthDisabled = false
	srv.TLSConfig = opts.TLSConfig

	return &Server{
		srv:      srv,
		store:    st,
		listener: listener,
	}, nil
}

// Start serves in the background until Close.
func (s *Server) Start() {
	go func() {
		// Serve returns on Close; nothing useful to do with its error.
		_ = s.srv.Serve(s.listener)
	}()
}

// Close shuts the server down.
func (s *Server) Close() {
	_ = s.srv.Close()
}

// Address returns the host:port the server listens on.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Port returns the ephemeral port the server listens on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Messages returns the bodies of all messages received so far.
func (s *Server) Messages() []string {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	out := make([]string, 0, len(s.store.messages))
	for _, m := range s.store.messages {
		out = append(out, m.body)
	}
	return out
}

// Logins returns every AUTH exchange the server accepted or rejected.
func (s *Server) Logins() []Login {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	return append([]Login(nil), s.store.logins...)
}

// backend implements smtp.Backend, recording logins on the store.
type backend struct {
	store *store
}

// errAuthFailed mirrors the 535 a real MTA replies with on bad credentials.
var errAuthFailed = &smtp.SMTPError{
	Code:         535,
	EnhancedCode: smtp.EnhancedCode{5, 7, 8},
	Message:      "Authentication credentials invalid",
}

// Login implements smtp.Backend.
func (b *backend) Login(_ *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	b.store.mu.Lock()
	b.store.logins = append(b.store.logins, Login{Username: username, Password: password})
	opts := b.store.opts
	b.store.mu.Unlock()

	if username == "" || password == "" {
		return nil, errAuthFailed
	}
	if opts.Username != "" && (username != opts.Username || password != opts.Password) {
		return nil, errAuthFailed
	}
	return b.store, nil
}

// AnonymousLogin implements smtp.Backend.
func (b *backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	if !b.store.opts.AllowAnonymous {
		return nil, smtp.ErrAuthRequired
	}
	return b.store, nil
}

// Reset implements smtp.Session.
func (st *store) Reset() {}

// Logout implements smtp.Session.
func (st *store) Logout() error { return nil }

// Mail implements smtp.Session.
func (st *store) Mail(_ string, _ smtp.MailOptions) error { return nil }

// Rcpt implements smtp.Session.
func (st *store) Rcpt(_ string) error { return nil }

// Data implements smtp.Session, storing the message body in memory.
func (st *store) Data(r io.Reader) error {
	// generous, but reads need a bound
	var maxMessageSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxMessageSize))
	if err != nil {
		return err
	}

	body := &strings.Builder{}
	if _, err := body.Write(buf); err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.messages = append(st.messages, messageData{created: time.Now(), body: body.String()})
	return nil
}
