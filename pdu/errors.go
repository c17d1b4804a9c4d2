package pdu

import "errors"

var (
	// ErrShort is returned when a PDU ends before a field it announces.
	ErrShort = errors.New("pdu: truncated")

	// ErrUnsupportedType is returned for TPDU message types other than
	// SMS-DELIVER, SMS-SUBMIT and SMS-STATUS-REPORT.
	ErrUnsupportedType = errors.New("pdu: unsupported message type")

	// ErrEmpty is returned for an empty payload.
	ErrEmpty = errors.New("pdu: empty")

	// ErrLength is returned when an APDU's Lc does not match its body.
	ErrLength = errors.New("pdu: APDU length mismatch")
)
