package smtp

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/mailconn/smtptest"
)

// miniSMTPServer is a minimal plaintext SMTP server that records every
// command it receives, so tests can assert which protocol steps ran.
type miniSMTPServer struct {
	listener net.Listener

	mu       sync.Mutex
	commands []string
	failAuth bool
}

func startMiniSMTPServer(t *testing.T) *miniSMTPServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to start SMTP server")

	server := &miniSMTPServer{listener: listener}
	go server.handleConnections()

	t.Cleanup(server.close)
	return server
}

func (s *miniSMTPServer) handleConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}

		go func() {
			defer conn.Close()
			s.handleSMTP(conn)
		}()
	}
}

func (s *miniSMTPServer) handleSMTP(conn net.Conn) {
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	writer.WriteString("220 localhost ESMTP Test Server\r\n")
	writer.Flush()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		s.record(line)

		switch {
		case strings.HasPrefix(line, "EHLO") || strings.HasPrefix(line, "HELO"):
			writer.WriteString("250-localhost\r\n250-AUTH PLAIN LOGIN CRAM-MD5\r\n250 HELP\r\n")
			writer.Flush()
		case strings.HasPrefix(line, "AUTH"):
			if s.authShouldFail() {
				writer.WriteString("535 5.7.8 Authentication credentials invalid\r\n")
			} else {
				writer.WriteString("235 OK\r\n")
			}
			writer.Flush()
		case line == "NOOP":
			writer.WriteString("250 OK\r\n")
			writer.Flush()
		case line == "QUIT":
			writer.WriteString("221 localhost closing connection\r\n")
			writer.Flush()
			return
		default:
			writer.WriteString("500 Syntax error\r\n")
			writer.Flush()
		}
	}
}

func (s *miniSMTPServer) setFailAuth(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAuth = fail
}

func (s *miniSMTPServer) authShouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failAuth
}

func (s *miniSMTPServer) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, line)
}

func (s *miniSMTPServer) sawCommand(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (s *miniSMTPServer) close() {
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *miniSMTPServer) hostPort() (string, int) {
	addr := s.listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Server = ""

	session, err := New(cfg, nil)
	require.Error(t, err)
	assert.Nil(t, session)
	assert.True(t, IsConfigError(err))
}

func TestSession_SuppressSend_NoIO(t *testing.T) {
	// No server exists at this address; suppressed mode must not notice.
	cfg := Config{
		Server:       "smtp.invalid",
		Port:         587,
		UseTLS:       true,
		SuppressSend: true,
	}

	session, err := New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Open(context.Background()))
	assert.Nil(t, session.Client())

	assert.NoError(t, session.Close())
}

func TestSession_SuppressSend_CloseOnce(t *testing.T) {
	cfg := Config{Server: "smtp.invalid", Port: 587, SuppressSend: true}

	session, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, session.Open(context.Background()))
	require.NoError(t, session.Close())

	assert.ErrorIs(t, session.Close(), ErrSessionClosed)
}

func TestSession_SingleUse(t *testing.T) {
	cfg := Config{Server: "smtp.invalid", Port: 587, SuppressSend: true}

	session, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, session.Open(context.Background()))

	assert.ErrorIs(t, session.Open(context.Background()), ErrSessionUsed)

	require.NoError(t, session.Close())
	assert.ErrorIs(t, session.Open(context.Background()), ErrSessionClosed)
}

func TestSession_SingleUse_AfterFailure(t *testing.T) {
	// Nothing listens on this port.
	cfg := Config{Server: "127.0.0.1", Port: 1}

	session, err := New(cfg, nil)
	require.NoError(t, err)

	err = session.Open(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Nil(t, session.Client())

	// Failure is terminal: no second attempt, no close of a handle that
	// was never held.
	assert.ErrorIs(t, session.Open(context.Background()), ErrSessionUsed)
	assert.ErrorIs(t, session.Close(), ErrSessionNotOpen)
}

func TestSession_CloseBeforeOpen(t *testing.T) {
	session, err := New(validConfig(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, session.Close(), ErrSessionNotOpen)
}

func TestSession_PlainConnect_WithAuth(t *testing.T) {
	server := startMiniSMTPServer(t)
	host, port := server.hostPort()

	cfg := Config{
		Server:         host,
		Port:           port,
		Username:       "a",
		Password:       "b",
		UseCredentials: true,
		AuthMethod:     AuthPlain,
	}

	session, err := New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Open(context.Background()))
	assert.NotNil(t, session.Client())

	require.NoError(t, session.Close())
	assert.Nil(t, session.Client())

	assert.True(t, server.sawCommand("NOOP"), "expected greeting exchange")
	assert.True(t, server.sawCommand("AUTH"), "expected authentication")
	assert.True(t, server.sawCommand("QUIT"), "expected quit on close")
}

func TestSession_NoAuthWithoutCredentials(t *testing.T) {
	server := startMiniSMTPServer(t)
	host, port := server.hostPort()

	cfg := Config{
		Server:         host,
		Port:           port,
		Username:       "a", // present but unused
		Password:       "b",
		UseCredentials: false,
	}

	session, err := New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Open(context.Background()))
	require.NoError(t, session.Close())

	assert.False(t, server.sawCommand("AUTH"), "AUTH must not be issued without credentials")
}

func TestSession_AuthFailure(t *testing.T) {
	server := startMiniSMTPServer(t)
	server.setFailAuth(true)
	host, port := server.hostPort()

	cfg := Config{
		Server:         host,
		Port:           port,
		Username:       "a",
		Password:       "wrong",
		UseCredentials: true,
	}

	session, err := New(cfg, nil)
	require.NoError(t, err)

	err = session.Open(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "connection failed: check credentials or mail service configuration")
	assert.Nil(t, session.Client(), "no handle may survive a failed open")
}

func TestSession_LoginAuth(t *testing.T) {
	server := startMiniSMTPServer(t)
	host, port := server.hostPort()

	cfg := Config{
		Server:         host,
		Port:           port,
		Username:       "a",
		Password:       "b",
		UseCredentials: true,
		AuthMethod:     AuthLogin,
	}

	session, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, session.Open(context.Background()))
	require.NoError(t, session.Close())

	assert.True(t, server.sawCommand("AUTH LOGIN"))
}

func TestSession_OpenCanceledContext(t *testing.T) {
	server := startMiniSMTPServer(t)
	host, port := server.hostPort()

	cfg := Config{Server: host, Port: port, UseCredentials: false}
	session, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = session.Open(ctx)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWith_ClosesOnSuccess(t *testing.T) {
	server := startMiniSMTPServer(t)
	host, port := server.hostPort()

	cfg := Config{Server: host, Port: port, UseCredentials: false}

	var sawClient bool
	err := With(context.Background(), cfg, func(_ context.Context, s *Session) error {
		sawClient = s.Client() != nil
		return nil
	})
	require.NoError(t, err)

	assert.True(t, sawClient)
	assert.True(t, server.sawCommand("QUIT"), "With must close on the success path")
}

func TestWith_ClosesOnError(t *testing.T) {
	server := startMiniSMTPServer(t)
	host, port := server.hostPort()

	cfg := Config{Server: host, Port: port, UseCredentials: false}

	wantErr := fmt.Errorf("send blew up")
	err := With(context.Background(), cfg, func(_ context.Context, _ *Session) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.True(t, server.sawCommand("QUIT"), "With must close on the error path")
}

func TestWith_ClosesOnPanic(t *testing.T) {
	server := startMiniSMTPServer(t)
	host, port := server.hostPort()

	cfg := Config{Server: host, Port: port, UseCredentials: false}

	func() {
		defer func() {
			require.NotNil(t, recover(), "expected the panic to propagate")
		}()
		_ = With(context.Background(), cfg, func(_ context.Context, _ *Session) error {
			panic("boom")
		})
	}()

	assert.True(t, server.sawCommand("QUIT"), "With must close even when fn panics")
}

func TestWith_OpenFailure(t *testing.T) {
	cfg := Config{Server: "127.0.0.1", Port: 1, UseCredentials: false}

	called := false
	err := With(context.Background(), cfg, func(_ context.Context, _ *Session) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.False(t, called, "fn must not run when open fails")
}

// Scenario: full STARTTLS and AUTH flow against a real in-process server.
func TestSession_STARTTLSAuthFlow_InProcessServer(t *testing.T) {
	cert, _, err := smtptest.NewTestCert("127.0.0.1", "localhost")
	require.NoError(t, err)

	server, err := smtptest.NewServer(smtptest.Options{
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	})
	require.NoError(t, err)
	server.Start()
	t.Cleanup(server.Close)

	cfg := Config{
		Server:         "127.0.0.1",
		Port:           server.Port(),
		Username:       "a",
		Password:       "b",
		UseTLS:         true,
		ValidateCerts:  false,
		UseCredentials: true,
	}

	session, err := New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Open(context.Background()))
	require.NoError(t, session.Close())

	logins := server.Logins()
	require.Len(t, logins, 1)
	assert.Equal(t, "a", logins[0].Username)
	assert.Equal(t, "b", logins[0].Password)
}
