package at

import "log/slog"

// HandoffFunc decodes a payload the analyzer does not interpret itself.
// It returns a one-line summary of what it found.
type HandoffFunc func(role Role, payload []byte) (string, error)

// Config holds the settings of an Analyzer. Build it with NewConfigBuilder.
type Config struct {
	registry *Registry
	role     Override
	handoffs map[string]HandoffFunc
	logger   *slog.Logger
}

func (c *Config) setDefaults() {
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.handoffs == nil {
		c.handoffs = make(map[string]HandoffFunc)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config. The first error encountered is kept
// and returned by Build.
type ConfigBuilder struct {
	config Config
	err    error
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{handoffs: make(map[string]HandoffFunc)}}
}

// WithRegistry replaces the built-in command table.
func (b *ConfigBuilder) WithRegistry(r *Registry) *ConfigBuilder {
	b.config.registry = r
	return b
}

// WithRole forces the role of every frame.
func (b *ConfigBuilder) WithRole(o Override) *ConfigBuilder {
	b.config.role = o
	return b
}

// WithHandoff registers an external analyzer under name.
func (b *ConfigBuilder) WithHandoff(name string, fn HandoffFunc) *ConfigBuilder {
	switch {
	case b.err != nil:
	case name == "":
		b.err = ErrEmptyHandoffName
	case fn == nil:
		b.err = ErrNilHandoff
	default:
		b.config.handoffs[name] = fn
	}
	return b
}

// WithLogger sets the logger advisories are reported to at debug level.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	c := b.config
	c.setDefaults()
	return c, nil
}
