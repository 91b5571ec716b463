package config

import (
	"bytes"

	"github.com/rs/zerolog"
)

// Context is passed explicitly to every stage. It carries the configuration,
// the root of the verification key tree the stage accepts previous proofs
// from, and the logger. Stages only read from it.
type Context struct {
	Config *Config
	VKRoot []byte
	Log    zerolog.Logger
}

// Option customizes a Context.
type Option func(*Context)

// WithLogger sets the logger used by the stages.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Context) { c.Log = log }
}

// NewContext returns a context over cfg accepting keys under vkRoot. The
// logger defaults to a disabled one.
func NewContext(cfg *Config, vkRoot []byte, opts ...Option) *Context {
	c := &Context{
		Config: cfg,
		VKRoot: bytes.Clone(vkRoot),
		Log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logger returns a child logger tagged with the stage name.
func (c *Context) Logger(stage string) zerolog.Logger {
	return c.Log.With().Str("stage", stage).Logger()
}
