package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	out    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput redirects one-shot command output (sections, tag lists) away
// from stdout. Mainly for tests.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
