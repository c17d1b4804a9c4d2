package main

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the application configuration
type Config struct {
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// Role forces the role of every frame ("auto", "dte" or "dce")
	Role string
	// DevicePort is the TCP/UDP port of the modem side in capture files
	DevicePort int
	// SerialPort is the tap port of the device's TX line (e.g. "/dev/ttyUSB0")
	SerialPort string
	// PeerPort is the optional tap port of the host's TX line
	PeerPort string
	// BaudRate is the baud rate of the tapped link (e.g. 115200)
	BaudRate int
	// BindAddress is the address the HTTP server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// ListenAddress is the address tap connections are accepted on
	ListenAddress string
	// ProxyProtocol expects a PROXY protocol header on tap connections
	ProxyProtocol bool
	// Source selects what the serve command publishes ("serial" or "tap")
	Source string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.LogLevel = "info"
		c.Role = "auto"
		c.DevicePort = 23
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.BindAddress = "0.0.0.0:8080"
		c.ListenAddress = "0.0.0.0:7023"
		c.Source = "tap"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if role := os.Getenv("ROLE"); role != "" {
			c.Role = role
		}

		if port := os.Getenv("DEVICE_PORT"); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				c.DevicePort = p
			}
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if peer := os.Getenv("PEER_PORT"); peer != "" {
			c.PeerPort = peer
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if addr := os.Getenv("LISTEN_ADDRESS"); addr != "" {
			c.ListenAddress = addr
		}

		if proxy := os.Getenv("PROXY_PROTOCOL"); proxy != "" {
			if p, err := strconv.ParseBool(proxy); err == nil {
				c.ProxyProtocol = p
			}
		}

		if source := os.Getenv("SOURCE"); source != "" {
			c.Source = source
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags that were set
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "log-level":
				c.LogLevel = f.Value.String()
			case "role":
				c.Role = f.Value.String()
			case "device-port":
				if p, err := strconv.Atoi(f.Value.String()); err == nil {
					c.DevicePort = p
				}
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "peer-port":
				c.PeerPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "listen-address":
				c.ListenAddress = f.Value.String()
			case "proxy-protocol":
				if p, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.ProxyProtocol = p
				}
			case "source":
				c.Source = f.Value.String()
			}
		})
		return nil
	}
}
