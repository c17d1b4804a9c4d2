package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"i4.energy/across/atsniff/at"
)

// DefaultDevicePort is the TCP/UDP port a networked modem is reached on
// when nothing else is configured (telnet, as used by ser2net).
const DefaultDevicePort = 23

var (
	pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}
	pcapMagics  = [][]byte{
		{0xa1, 0xb2, 0xc3, 0xd4},
		{0xd4, 0xc3, 0xb2, 0xa1},
		{0xa1, 0xb2, 0x3c, 0x4d},
		{0x4d, 0x3c, 0xb2, 0xa1},
	}
)

// Packet is one frame cut from a capture file.
type Packet struct {
	at.Frame
	Timestamp time.Time
	// Registered is set for packets on the device port. Others carry no
	// registered channel and must pass at.Heuristic before analysis.
	Registered bool
}

// Reader reads AT frames out of a pcap or pcapng capture. TCP and UDP
// payloads are keyed by their endpoint pair; Linux usbmon URBs by bus and
// device address.
type Reader struct {
	source     *gopacket.PacketSource
	devicePort uint16
	closer     io.Closer
	// number counts every packet of the file so frame numbers match what
	// other capture tools show
	number uint64
}

// NewReader detects the file format by its magic number and prepares a
// packet source over it. devicePort is the port the modem side listens on.
func NewReader(r io.Reader, devicePort uint16) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}

	var source *gopacket.PacketSource
	switch {
	case bytes.Equal(magic, pcapngMagic):
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("read pcapng header: %w", err)
		}
		source = gopacket.NewPacketSource(ng, ng.LinkType())
	case isPcap(magic):
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("read pcap header: %w", err)
		}
		source = gopacket.NewPacketSource(pr, pr.LinkType())
	default:
		return nil, ErrNotCapture
	}

	source.DecodeOptions = gopacket.DecodeOptions{Lazy: true}
	return &Reader{source: source, devicePort: devicePort}, nil
}

func isPcap(magic []byte) bool {
	for _, m := range pcapMagics {
		if bytes.Equal(magic, m) {
			return true
		}
	}
	return false
}

// OpenFile opens a capture file. Close the Reader when done.
func OpenFile(path string, devicePort uint16) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, devicePort)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Close closes the file opened by OpenFile.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Next returns the next packet carrying a payload. It returns io.EOF at the
// end of the capture.
func (r *Reader) Next() (Packet, error) {
	for {
		p, err := r.source.NextPacket()
		if errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		if err != nil {
			return Packet{}, fmt.Errorf("packet %d: %w", r.number+1, err)
		}
		r.number++

		pkt, ok := r.decode(p)
		if !ok {
			continue
		}
		pkt.Number = r.number
		if md := p.Metadata(); md != nil {
			pkt.Timestamp = md.Timestamp
		}
		return pkt, nil
	}
}

func (r *Reader) decode(p gopacket.Packet) (Packet, bool) {
	if tcp, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		return r.transport(p, uint16(tcp.SrcPort), uint16(tcp.DstPort), tcp.Payload)
	}
	if udp, ok := p.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		return r.transport(p, uint16(udp.SrcPort), uint16(udp.DstPort), udp.Payload)
	}
	if usb, ok := p.Layer(layers.LayerTypeUSB).(*layers.USB); ok {
		return usbPacket(usb)
	}
	return Packet{}, false
}

func (r *Reader) transport(p gopacket.Packet, srcPort, dstPort uint16, payload []byte) (Packet, bool) {
	if len(payload) == 0 {
		return Packet{}, false
	}
	srcHost, dstHost := "?", "?"
	if netLayer := p.NetworkLayer(); netLayer != nil {
		src, dst := netLayer.NetworkFlow().Endpoints()
		srcHost, dstHost = src.String(), dst.String()
	}
	src := net.JoinHostPort(srcHost, strconv.Itoa(int(srcPort)))
	dst := net.JoinHostPort(dstHost, strconv.Itoa(int(dstPort)))

	pkt := Packet{Frame: at.Frame{Key: at.FlowKey(src, dst), Data: payload}}
	switch {
	case dstPort == r.devicePort:
		pkt.Direction, pkt.Registered = at.Sent, true
	case srcPort == r.devicePort:
		pkt.Direction, pkt.Registered = at.Received, true
	default:
		pkt.Direction = guessDirection(payload)
	}
	return pkt, true
}

func usbPacket(usb *layers.USB) (Packet, bool) {
	if len(usb.Payload) == 0 {
		return Packet{}, false
	}
	device := fmt.Sprintf("usb:%d.%d", usb.BusID, usb.DeviceAddress)
	pkt := Packet{Frame: at.Frame{Key: at.FlowKey("host", device), Data: usb.Payload}}
	if usb.Direction == layers.USBDirectionTypeIn {
		pkt.Direction = at.Received
	} else {
		pkt.Direction = at.Sent
	}
	return pkt, true
}

// guessDirection tells a command line from device output when the port
// does not. Result codes, URCs and the SMS prompt come from the device.
func guessDirection(payload []byte) at.Direction {
	line := bytes.TrimLeft(payload, at.CRLF)
	if i := bytes.IndexAny(line, at.CRLF); i >= 0 {
		line = line[:i]
	}
	switch at.Classify(string(line)) {
	case at.TypeFinal, at.TypeURC, at.TypePrompt:
		return at.Received
	}
	if len(line) >= 2 && bytes.EqualFold(line[:2], []byte("AT")) {
		return at.Sent
	}
	return at.Received
}
