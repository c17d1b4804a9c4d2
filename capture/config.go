package capture

import (
	"log/slog"

	"i4.energy/across/atsniff/at"
)

// DefaultMaxLineLength bounds a line of the sniffed stream.
const DefaultMaxLineLength = 64 * 1024

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

// Config holds the settings of a Sniffer. Build it with NewConfigBuilder.
type Config struct {
	dialer     Dialer
	peerDialer Dialer
	direction  at.Direction
	key        at.Key
	maxLine    int
	logger     *slog.Logger
}

func (c *Config) setDefaults() {
	if c.maxLine == 0 {
		c.maxLine = DefaultMaxLineLength
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder starts a sniffer config. By default the stream is taken
// to be what the device sends, since a single tap most often sits on the
// modem's TX line.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{direction: at.Received}}
}

// WithDialer sets the stream to sniff.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithPeerDialer adds the opposite direction of the link, for taps with
// one port on each line.
func (b *ConfigBuilder) WithPeerDialer(d Dialer) *ConfigBuilder {
	b.config.peerDialer = d
	return b
}

// WithDirection sets the direction of the stream opened by the dialer. The
// peer stream, if any, gets the other one.
func (b *ConfigBuilder) WithDirection(d at.Direction) *ConfigBuilder {
	b.config.direction = d
	return b
}

// WithKey sets the session key of the frames. A key derived from a random
// capture ID is used otherwise.
func (b *ConfigBuilder) WithKey(k at.Key) *ConfigBuilder {
	b.config.key = k
	return b
}

func (b *ConfigBuilder) WithMaxLineLength(n int) *ConfigBuilder {
	b.config.maxLine = n
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	c := b.config
	c.setDefaults()
	return c, nil
}
