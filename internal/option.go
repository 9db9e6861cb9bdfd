package internal

import (
	"io"

	"github.com/starford/certhub/internal/fixtures"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	loader    fixtures.Loader
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where the JSON logger writes. Defaults to stdout;
// the MCP runner uses stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithLoader overrides the seed loader chosen from the store config.
func WithLoader(l fixtures.Loader) Option {
	return func(a *application) {
		a.loader = l
	}
}
