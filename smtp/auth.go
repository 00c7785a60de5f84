package smtp

import (
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
)

// authenticator builds an smtp.Auth for the configured mechanism.
type authenticator interface {
	auth(username, password, host string) smtp.Auth
}

// newAuthenticator maps Config.AuthMethod to an implementation. Validate
// has already rejected unknown mechanisms.
func newAuthenticator(method string) authenticator {
	switch strings.ToLower(method) {
	case AuthLogin:
		return &loginAuth{}
	case AuthCramMD5:
		return cramMD5Auth{}
	default:
		return plainAuth{}
	}
}

type plainAuth struct{}

func (plainAuth) auth(username, password, host string) smtp.Auth {
	return smtp.PlainAuth("", username, password, host)
}

type cramMD5Auth struct{}

func (cramMD5Auth) auth(username, password, _ string) smtp.Auth {
	return smtp.CRAMMD5Auth(username, password)
}

// loginAuth implements the legacy AUTH LOGIN exchange, still required by
// some providers that refuse PLAIN.
type loginAuth struct {
	username, password string
}

func (*loginAuth) auth(username, password, _ string) smtp.Auth {
	return &loginAuth{username: username, password: password}
}

// Start implements smtp.Auth.
func (a *loginAuth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte(a.username), nil
}

// Next implements smtp.Auth.
func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch strings.TrimSpace(string(fromServer)) {
	case "Username:":
		return []byte(a.username), nil
	case "Password:":
		return []byte(a.password), nil
	default:
		return nil, errors.Errorf("unexpected server challenge %q", fromServer)
	}
}
