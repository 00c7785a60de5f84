// Package env loads configuration structs from the process environment,
// optionally seeded from a .env file.
package env

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const DefaultEnvFile = ".env"

// Load reads the given .env files into the process environment. Missing
// files are not an error; an explicit empty call loads DefaultEnvFile.
func Load(files ...string) {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		// nolint:errcheck // .env files are optional
		_ = godotenv.Load(f)
	}
}

// Process fills config from environment variables with the given prefix,
// applying envconfig tags (required, default).
func Process(prefix string, config any) error {
	Load()

	if err := envconfig.Process(prefix, config); err != nil {
		return errors.Wrap(err, "failed to process environment config")
	}

	return nil
}
