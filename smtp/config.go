package smtp

import (
	"strings"

	"github.com/pure-golang/mailconn/env"
)

// Auth mechanisms accepted in Config.AuthMethod.
const (
	AuthPlain   = "plain"
	AuthLogin   = "login"
	AuthCramMD5 = "cram-md5"
)

// Config contains the connection parameters for a mail session. A Config
// is snapshotted by New and never mutated afterwards.
type Config struct {
	Server   string `envconfig:"MAIL_SERVER" required:"true"` // smtp.gmail.com
	Port     int    `envconfig:"MAIL_PORT" default:"587"`     // 587 for STARTTLS, 465 for implicit TLS
	Username string `envconfig:"MAIL_USERNAME"`
	Password string `envconfig:"MAIL_PASSWORD"`

	// UseTLS upgrades the connection via STARTTLS after it is opened.
	// UseSSL opens the connection with implicit TLS, encrypted from the
	// first byte. Setting both layers a STARTTLS negotiation on top of
	// the already encrypted transport; see Session.Open.
	UseTLS bool `envconfig:"MAIL_TLS" default:"false"`
	UseSSL bool `envconfig:"MAIL_SSL" default:"false"`

	// ValidateCerts verifies the server certificate chain and hostname.
	// Disabling it is an explicit opt-out, never a silent default.
	ValidateCerts bool `envconfig:"MAIL_VALIDATE_CERTS" default:"true"`

	// CAFile points at a PEM bundle of trusted roots. Empty means the
	// system trust store.
	CAFile string `envconfig:"MAIL_CA_FILE"`

	// UseCredentials enables AUTH with Username/Password after connecting.
	UseCredentials bool `envconfig:"MAIL_USE_CREDENTIALS" default:"true"`

	// AuthMethod selects the AUTH mechanism: plain, login or cram-md5.
	AuthMethod string `envconfig:"MAIL_AUTH_METHOD" default:"plain"`

	// SuppressSend is a dry-run mode for tests: Open performs no network
	// I/O at all and the session still reports itself as open.
	SuppressSend bool `envconfig:"MAIL_SUPPRESS_SEND" default:"false"`
}

// LoadConfig reads a Config from the environment, loading a .env file
// first if one is present.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Process("", &cfg); err != nil {
		return Config{}, newConfigError(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects malformed or missing required fields. It runs before
// any I/O; a Config that passes is accepted by New as-is.
func (c Config) Validate() error {
	if c.Server == "" {
		return newConfigError("server must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return newConfigError("port must be in range 1..65535")
	}
	if c.UseCredentials && (c.Username == "" || c.Password == "") {
		return newConfigError("credentials enabled but username or password is empty")
	}
	switch strings.ToLower(c.AuthMethod) {
	case "", AuthPlain, AuthLogin, AuthCramMD5:
	default:
		return newConfigError("unsupported auth method: " + c.AuthMethod)
	}
	return nil
}
