// Package pdu decodes the binary payloads AT commands carry as hex: SMS
// TPDUs (3GPP TS 23.040) and SIM APDUs (ISO 7816-4, 3GPP TS 51.011).
package pdu

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"
)

// MessageType is the TP-MTI of a TPDU, resolved with its direction.
type MessageType int

const (
	Deliver MessageType = iota
	Submit
	StatusReport
)

func (t MessageType) String() string {
	switch t {
	case Deliver:
		return "SMS-DELIVER"
	case Submit:
		return "SMS-SUBMIT"
	case StatusReport:
		return "SMS-STATUS-REPORT"
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Address is an originating, destination or recipient address.
type Address struct {
	Type   byte
	Number string
}

func (a Address) String() string {
	if a.Type&0x70 == 0x10 && !strings.HasPrefix(a.Number, "+") {
		return "+" + a.Number
	}
	return a.Number
}

// TPDU is the decoded header and user data of one short message.
type TPDU struct {
	Type       MessageType
	FirstOctet byte
	// MR is the message reference of SMS-SUBMIT and SMS-STATUS-REPORT.
	MR byte
	// Address is the OA of a DELIVER, the DA of a SUBMIT or the RA of a
	// STATUS-REPORT.
	Address Address
	PID     byte
	DCS     byte
	SCTS    time.Time
	// Validity is the raw TP-VP of a SUBMIT.
	Validity []byte
	// Discharge and Status belong to a STATUS-REPORT.
	Discharge time.Time
	Status    byte
	UDHI      bool
	UDL       int
	UD        []byte
	Text      string
}

func (t *TPDU) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", t.Type)
	switch t.Type {
	case Deliver:
		fmt.Fprintf(&b, " from %s at %s", t.Address, t.SCTS.Format(time.RFC3339))
	case Submit:
		fmt.Fprintf(&b, " to %s mr %d", t.Address, t.MR)
	case StatusReport:
		fmt.Fprintf(&b, " for %s mr %d status 0x%02x", t.Address, t.MR, t.Status)
		return b.String()
	}
	fmt.Fprintf(&b, " dcs 0x%02x: %q", t.DCS, t.Text)
	return b.String()
}

// DecodeSMS decodes a TPDU. mobileOriginated tells the direction: a TPDU
// sent by the terminal (AT+CMGS) is read with MS to SC meanings, one
// reported by the device (+CMGR, +CMGL) with SC to MS meanings, where a
// stored outgoing message is still an SMS-SUBMIT.
func DecodeSMS(b []byte, mobileOriginated bool) (*TPDU, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	r := &reader{b: b}
	t := &TPDU{FirstOctet: r.octet()}
	t.UDHI = t.FirstOctet&0x40 != 0

	switch mti := t.FirstOctet & 0x03; {
	case mti == 0x01:
		t.Type = Submit
	case mti == 0x00 && !mobileOriginated:
		t.Type = Deliver
	case mti == 0x02 && !mobileOriginated:
		t.Type = StatusReport
	default:
		return nil, fmt.Errorf("%w: TP-MTI %d", ErrUnsupportedType, mti)
	}

	switch t.Type {
	case Deliver:
		t.Address = r.address()
		t.PID = r.octet()
		t.DCS = r.octet()
		t.SCTS = r.timestamp()
	case Submit:
		t.MR = r.octet()
		t.Address = r.address()
		t.PID = r.octet()
		t.DCS = r.octet()
		switch (t.FirstOctet >> 3) & 0x03 {
		case 0x02:
			t.Validity = r.bytes(1)
		case 0x01, 0x03:
			t.Validity = r.bytes(7)
		}
	case StatusReport:
		t.MR = r.octet()
		t.Address = r.address()
		t.SCTS = r.timestamp()
		t.Discharge = r.timestamp()
		t.Status = r.octet()
		if r.err != nil {
			return nil, r.err
		}
		return t, nil
	}

	t.UDL = int(r.octet())
	if r.err != nil {
		return nil, r.err
	}
	t.UD = r.b[r.pos:]
	text, err := userData(t.DCS, t.UDHI, t.UDL, t.UD)
	if err != nil {
		return nil, err
	}
	t.Text = text
	return t, nil
}

type alphabet int

const (
	gsm7 alphabet = iota
	octets
	ucs2
)

func alphabetOf(dcs byte) alphabet {
	switch {
	case dcs&0xc0 == 0x00:
		switch (dcs >> 2) & 0x03 {
		case 0:
			return gsm7
		case 2:
			return ucs2
		}
		return octets
	case dcs&0xf0 == 0xf0:
		if dcs&0x04 != 0 {
			return octets
		}
		return gsm7
	case dcs&0xf0 == 0xe0:
		return ucs2
	case dcs&0xe0 == 0xc0:
		return gsm7
	}
	return octets
}

func userData(dcs byte, udhi bool, udl int, ud []byte) (string, error) {
	headerLen := 0
	if udhi {
		if len(ud) == 0 {
			return "", fmt.Errorf("%w: user data header", ErrShort)
		}
		headerLen = 1 + int(ud[0])
		if headerLen > len(ud) {
			return "", fmt.Errorf("%w: user data header of %d octets", ErrShort, headerLen)
		}
	}

	switch alphabetOf(dcs) {
	case gsm7:
		need := (udl*7 + 7) / 8
		if need > len(ud) {
			return "", fmt.Errorf("%w: %d septets in %d octets", ErrShort, udl, len(ud))
		}
		septets := unpackSeptets(ud, udl)
		skip := (headerLen*8 + 6) / 7
		if skip > len(septets) {
			skip = len(septets)
		}
		return decodeGSM7(septets[skip:]), nil
	case ucs2:
		if udl > len(ud) || headerLen > udl {
			return "", fmt.Errorf("%w: %d octets of user data", ErrShort, udl)
		}
		body := ud[headerLen:udl]
		units := make([]uint16, 0, len(body)/2)
		for i := 0; i+1 < len(body); i += 2 {
			units = append(units, uint16(body[i])<<8|uint16(body[i+1]))
		}
		return string(utf16.Decode(units)), nil
	}
	if udl > len(ud) || headerLen > udl {
		return "", fmt.Errorf("%w: %d octets of user data", ErrShort, udl)
	}
	return fmt.Sprintf("%x", ud[headerLen:udl]), nil
}

func unpackSeptets(b []byte, n int) []byte {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		bit := i * 7
		idx, shift := bit/8, bit%8
		if idx >= len(b) {
			break
		}
		v := int(b[idx]) >> shift
		if shift > 1 && idx+1 < len(b) {
			v |= int(b[idx+1]) << (8 - shift)
		}
		out = append(out, byte(v&0x7f))
	}
	return out
}

// gsmDefault is the GSM 03.38 default alphabet.
var gsmDefault = []rune("@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà")

var gsmExtension = map[byte]rune{
	0x0a: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2f: '\\',
	0x3c: '[',
	0x3d: '~',
	0x3e: ']',
	0x40: '|',
	0x65: '€',
}

func decodeGSM7(septets []byte) string {
	var b strings.Builder
	for i := 0; i < len(septets); i++ {
		s := septets[i]
		if s == 0x1b && i+1 < len(septets) {
			i++
			if r, ok := gsmExtension[septets[i]]; ok {
				b.WriteRune(r)
			} else {
				b.WriteRune(gsmDefault[septets[i]])
			}
			continue
		}
		b.WriteRune(gsmDefault[s])
	}
	return b.String()
}

type reader struct {
	b   []byte
	pos int
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.b) {
		r.err = fmt.Errorf("%w: need %d octets at %d, have %d", ErrShort, n, r.pos, len(r.b)-r.pos)
		return nil
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) octet() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// address reads a length (in digits), a type of address and the digits.
func (r *reader) address() Address {
	digits := int(r.octet())
	a := Address{Type: r.octet()}
	raw := r.bytes((digits + 1) / 2)
	if raw == nil {
		return a
	}
	if a.Type&0x70 == 0x50 {
		a.Number = decodeGSM7(unpackSeptets(raw, digits*4/7))
		return a
	}
	a.Number = semiOctets(raw, digits)
	return a
}

const bcdDigits = "0123456789*#abc"

func semiOctets(raw []byte, digits int) string {
	var b strings.Builder
	for _, o := range raw {
		for _, n := range [2]byte{o & 0x0f, o >> 4} {
			if n == 0x0f || b.Len() >= digits {
				return b.String()
			}
			b.WriteByte(bcdDigits[n])
		}
	}
	return b.String()
}

// timestamp reads a 7 octet service centre time stamp.
func (r *reader) timestamp() time.Time {
	raw := r.bytes(7)
	if raw == nil {
		return time.Time{}
	}
	v := func(o byte) int { return int(o&0x0f)*10 + int(o>>4) }
	quarters := int(raw[6]&0x07)*10 + int(raw[6]>>4)
	if raw[6]&0x08 != 0 {
		quarters = -quarters
	}
	zone := time.FixedZone("", quarters*15*60)
	return time.Date(2000+v(raw[0]), time.Month(v(raw[1])), v(raw[2]), v(raw[3]), v(raw[4]), v(raw[5]), 0, zone)
}
