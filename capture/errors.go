package capture

import "errors"

var (
	// ErrNoDialer is returned when a Sniffer is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// open the stream the sniffer reads.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoPortName is returned by SerialDialer when no port is configured.
	ErrNoPortName = errors.New("capture: serial port name is required")

	// ErrNilContext is returned by SerialDialer when called without a context.
	ErrNilContext = errors.New("capture: context is nil")

	// ErrLoopRunning is returned when Loop is called while another Loop of
	// the same Sniffer is running.
	ErrLoopRunning = errors.New("loop already running")

	// ErrAlreadyClosed is returned when Close is called on a Sniffer that
	// has already been closed.
	ErrAlreadyClosed = errors.New("sniffer already closed")

	// ErrLineTooLong is returned when a line of the sniffed stream exceeds
	// the maximum allowed length.
	//
	// This typically indicates the port carries binary data (a PPP session
	// after CONNECT, for example) rather than AT text.
	ErrLineTooLong = errors.New("line too long")

	// ErrNotCapture is returned for files that are neither pcap nor pcapng.
	ErrNotCapture = errors.New("not a pcap or pcapng file")
)
