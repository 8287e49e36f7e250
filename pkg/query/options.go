package query

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type options struct {
	name   string
	logger zerolog.Logger
}

// Option configures a controller at construction time.
type Option func(*options)

func defaultOptions() options {
	return options{
		name:   uuid.NewString()[:8],
		logger: zerolog.Nop(),
	}
}

// WithName sets the label identifying this controller in metrics and log
// lines. Defaults to a short random identifier.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the base logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
