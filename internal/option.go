package internal

import "github.com/vheim/othala/internal/assistant"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	send   assistant.SendStreamFunc
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSendStream overrides the assistant streaming transport. Used by tests;
// the default is the Ollama transport built from the configuration.
func WithSendStream(send assistant.SendStreamFunc) Option {
	return func(a *application) {
		a.send = send
	}
}
