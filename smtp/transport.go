package smtp

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"

	"github.com/pkg/errors"
)

// transport opens an SMTP client against addr, consuming the server
// greeting. The two implementations differ only in whether the connection
// is encrypted from the first byte.
type transport interface {
	connect(ctx context.Context, addr string, tlsCfg *tls.Config) (*smtp.Client, error)
}

// plainTransport opens an unencrypted connection. A STARTTLS upgrade, if
// requested, happens later on the open client.
type plainTransport struct{}

func (plainTransport) connect(ctx context.Context, addr string, _ *tls.Config) (*smtp.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial smtp server")
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "invalid smtp address")
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to read smtp greeting")
	}
	return client, nil
}

// implicitTLSTransport opens a connection with implicit TLS: the entire
// session, including the greeting, is encrypted.
type implicitTLSTransport struct{}

func (implicitTLSTransport) connect(ctx context.Context, addr string, tlsCfg *tls.Config) (*smtp.Client, error) {
	d := tls.Dialer{Config: tlsCfg}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial smtp server with implicit tls")
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "invalid smtp address")
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to read smtp greeting")
	}
	return client, nil
}
