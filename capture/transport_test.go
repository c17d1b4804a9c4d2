package capture

import (
	"context"
	"errors"
	"testing"

	"go.bug.st/serial"
	"go.uber.org/mock/gomock"
)

func TestSerialDialer_Dial_EmptyPortName(t *testing.T) {
	dialer := SerialDialer{}

	transport, err := dialer.Dial(context.Background())
	if !errors.Is(err, ErrNoPortName) {
		t.Errorf("expected ErrNoPortName, got: %v", err)
	}
	if transport != nil {
		t.Error("expected nil transport for empty port name")
	}
}

func TestSerialDialer_Dial_NilContext(t *testing.T) {
	dialer := SerialDialer{PortName: "/dev/ttyUSB0"}

	//nolint:staticcheck // nil context is the case under test
	transport, err := dialer.Dial(nil)
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("expected ErrNilContext, got: %v", err)
	}
	if transport != nil {
		t.Error("expected nil transport for nil context")
	}
}

func TestSerialDialer_Dial_ContextCanceled(t *testing.T) {
	dialer := SerialDialer{PortName: "/dev/nonexistent"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport, err := dialer.Dial(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if transport != nil {
		t.Error("expected nil transport for canceled context")
	}
}

func TestSerialDialer_Dial_NonexistentPort(t *testing.T) {
	tests := []struct {
		name string
		mode *serial.Mode
	}{
		{name: "Default mode"},
		{name: "Explicit mode", mode: &serial.Mode{
			BaudRate: 9600,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := SerialDialer{PortName: "/dev/nonexistent", Mode: tt.mode}
			transport, err := dialer.Dial(context.Background())
			if err == nil {
				t.Fatal("expected error for non-existent port")
			}
			if transport != nil {
				t.Error("expected nil transport for non-existent port")
			}
		})
	}
}

func TestConnDialer(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := NewMockTransport(ctrl)

	d := connDialer{conn: conn}
	got, err := d.Dial(context.Background())
	if err != nil || got != conn {
		t.Errorf("Dial() = %v, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Dial(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
