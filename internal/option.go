package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// stdout receives the log and command output.
	stdout io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput redirects log and command output, os.Stdout by default.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}
