package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"i4.energy/across/atsniff/at"
	"i4.energy/across/atsniff/capture"
	"i4.energy/across/atsniff/pdu"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	config *Config
	logger *slog.Logger

	outputFlag     string
	noProgressFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atsniff",
		Short: "Analyze AT command traffic between a host and a modem",
		Long: `atsniff reconstructs AT commands and responses from captured or tapped
traffic between a host (DTE) and a modem (DCE).

Frames come from pcap/pcapng files, serial ports tapped off the link, or
TCP tap connections. Every frame is turned into a JSON record with the
commands, parameters, multi-line response parts and advisories found in it.
SMS PDUs and SIM APDUs carried by the commands are decoded as well.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("role", "auto", "Role of every frame (auto, dte, dce)")
	flags.Int("device-port", capture.DefaultDevicePort, "TCP/UDP port of the modem side in capture files")
	flags.String("serial-port", "/dev/ttyUSB0", "Serial port tapped off the modem's TX line")
	flags.String("peer-port", "", "Serial port tapped off the host's TX line")
	flags.Int("baud-rate", capture.DefaultBaudRate, "Baud rate of the tapped link")
	flags.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flags.String("listen-address", "0.0.0.0:7023", "Bind address for tap connections")
	flags.Bool("proxy-protocol", false, "Expect a PROXY protocol header on tap connections")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <capture.pcap>",
		Short: "Analyze a pcap or pcapng file",
		Long: `Analyze the AT traffic of a pcap or pcapng capture file.

Packets to or from the device port are analyzed as AT text. Other TCP and
UDP payloads, and Linux usbmon transfers, are analyzed only when they look
like AT text. Records are written as JSON lines.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}
	analyzeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write records to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&noProgressFlag, "no-progress", false, "Do not show a progress bar")

	sniffCmd := &cobra.Command{
		Use:   "sniff",
		Short: "Analyze a tapped serial link live",
		Long: `Read the serial port tapped off the modem's TX line, and the peer port
tapped off the host's TX line if one is given, and analyze the traffic live.`,
		RunE: runSniff,
	}

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept TCP tap connections and analyze them live",
		Long: `Accept TCP connections streaming what a modem sends, for example from
ser2net in monitor mode, and analyze each connection as its own session.`,
		RunE: runListen,
	}

	watchCmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Analyze capture files as they appear in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Publish live records over HTTP and WebSocket",
		Long: `Analyze a live source and publish the records: GET /records returns the
most recent ones and /ws streams them as they are produced.`,
		RunE: runServe,
	}
	serveCmd.Flags().String("source", "tap", "Live source to publish (serial, tap)")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		RunE:  runPorts,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("atsniff %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(analyzeCmd, sniffCmd, listenCmd, watchCmd, serveCmd, portsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration of every command and creates the logger.
func setup(cmd *cobra.Command, args []string) error {
	c, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(cmd.Flags()))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	config = c
	logger = newLogger(config.LogLevel)
	return nil
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// newAnalyzer creates an analyzer with the SMS and SIM decoders installed.
// Every capture source gets its own.
func newAnalyzer(c *Config, l *slog.Logger) (*at.Analyzer, error) {
	role, err := at.ParseOverride(c.Role)
	if err != nil {
		return nil, err
	}
	analyzerConfig, err := pdu.Register(at.NewConfigBuilder()).
		WithRole(role).
		WithLogger(l.With("component", "analyzer")).
		Build()
	if err != nil {
		return nil, fmt.Errorf("analyzer config: %w", err)
	}
	return at.New(analyzerConfig), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := capture.Ports()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}
