package internal

import "github.com/notebridge/nsx2joplin/internal/upload"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	svc    upload.Service
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithService overrides the remote note service, replacing the real
// Joplin client. Used by tests.
func WithService(svc upload.Service) Option {
	return func(a *application) {
		a.svc = svc
	}
}
