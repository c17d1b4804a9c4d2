package pdu_test

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"i4.energy/across/atsniff/pdu"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad test vector %q: %v", s, err)
	}
	return b
}

func TestDecodeSMS(t *testing.T) {
	tests := []struct {
		name             string
		tpdu             string
		mobileOriginated bool
		wantType         pdu.MessageType
		wantAddress      string
		wantText         string
	}{
		{
			name:             "Submit GSM 7 bit",
			tpdu:             "11 00 0B 91 6407281553F8 00 00 AA 0A E8329BFD4697D9EC37",
			mobileOriginated: true,
			wantType:         pdu.Submit,
			wantAddress:      "+46708251358",
			wantText:         "hellohello",
		},
		{
			name:        "Stored submit read back from the device",
			tpdu:        "11 00 0B 91 6407281553F8 00 00 AA 0A E8329BFD4697D9EC37",
			wantType:    pdu.Submit,
			wantAddress: "+46708251358",
			wantText:    "hellohello",
		},
		{
			name:        "Deliver GSM 7 bit",
			tpdu:        "04 0B 91 1346610089F6 00 00 20806291731408 0C C8F71D14969741F977FD07",
			wantType:    pdu.Deliver,
			wantAddress: "+31641600986",
			wantText:    "How are you?",
		},
		{
			name:             "Submit UCS2",
			tpdu:             "11 00 0B 91 6407281553F8 00 08 AA 04 4F60597D",
			mobileOriginated: true,
			wantType:         pdu.Submit,
			wantAddress:      "+46708251358",
			wantText:         "你好",
		},
		{
			name:             "Submit 8 bit data",
			tpdu:             "01 07 05 81 2143F5 00 04 03 DEADBE",
			mobileOriginated: true,
			wantType:         pdu.Submit,
			wantAddress:      "12345",
			wantText:         "deadbe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pdu.DecodeSMS(mustHex(t, tt.tpdu), tt.mobileOriginated)
			if err != nil {
				t.Fatalf("DecodeSMS() error = %v", err)
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Address.String() != tt.wantAddress {
				t.Errorf("Address = %q, want %q", got.Address, tt.wantAddress)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
		})
	}
}

func TestDecodeSMSDeliverTimestamp(t *testing.T) {
	got, err := pdu.DecodeSMS(mustHex(t, "04 0B 91 1346610089F6 00 00 20806291731408 0C C8F71D14969741F977FD07"), false)
	if err != nil {
		t.Fatalf("DecodeSMS() error = %v", err)
	}
	ts := got.SCTS
	if ts.Year() != 2002 || ts.Month() != 8 || ts.Day() != 26 || ts.Hour() != 19 || ts.Minute() != 37 || ts.Second() != 41 {
		t.Errorf("SCTS = %v, want 2002-08-26 19:37:41", ts)
	}
	if !strings.HasPrefix(got.String(), "SMS-DELIVER from +31641600986") {
		t.Errorf("String() = %q", got.String())
	}
}

func TestDecodeSMSStatusReport(t *testing.T) {
	got, err := pdu.DecodeSMS(mustHex(t, "06 2A 0B 91 6407281553F8 99309251619580 99309251619580 00"), false)
	if err != nil {
		t.Fatalf("DecodeSMS() error = %v", err)
	}
	if got.Type != pdu.StatusReport {
		t.Errorf("Type = %v, want %v", got.Type, pdu.StatusReport)
	}
	if got.MR != 0x2a {
		t.Errorf("MR = %d, want 42", got.MR)
	}
	if want := "SMS-STATUS-REPORT for +46708251358 mr 42 status 0x00"; got.String() != want {
		t.Errorf("String() = %q, want %q", got.String(), want)
	}
}

func TestDecodeSMSErrors(t *testing.T) {
	tests := []struct {
		name             string
		tpdu             string
		mobileOriginated bool
		wantErr          error
	}{
		{name: "Empty", tpdu: "", wantErr: pdu.ErrEmpty},
		{name: "Truncated address", tpdu: "04 0B 91 1346", wantErr: pdu.ErrShort},
		{name: "Missing user data", tpdu: "11 00 0B 91 6407281553F8 00 00 AA 0A E832", mobileOriginated: true, wantErr: pdu.ErrShort},
		{name: "Deliver sent by the terminal", tpdu: "04 0B 91 1346610089F6 00 00", mobileOriginated: true, wantErr: pdu.ErrUnsupportedType},
		{name: "Reserved type", tpdu: "03 00", wantErr: pdu.ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pdu.DecodeSMS(mustHex(t, tt.tpdu), tt.mobileOriginated)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeSMS() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
