package pdu

import (
	"i4.energy/across/atsniff/at"
)

// Register installs the SMS and SIM analyzers on an analyzer config.
func Register(b *at.ConfigBuilder) *at.ConfigBuilder {
	return b.
		WithHandoff(at.AnalyzerSMS, SMS).
		WithHandoff(at.AnalyzerSIM, SIM)
}

// SMS is the handoff for TPDUs. The terminal only sends mobile originated
// messages.
func SMS(role at.Role, payload []byte) (string, error) {
	t, err := DecodeSMS(payload, role == at.DTE)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// SIM is the handoff for +CSIM: commands come from the terminal, status
// and data from the device.
func SIM(role at.Role, payload []byte) (string, error) {
	if role == at.DTE {
		a, err := DecodeCommand(payload)
		if err != nil {
			return "", err
		}
		return a.String(), nil
	}
	s, err := DecodeStatus(payload)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}
