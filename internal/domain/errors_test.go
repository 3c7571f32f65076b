package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrOutstanding("ask"))

	if !errors.Is(err, ErrBusy) {
		t.Fatalf("errors.Is(err, ErrBusy) = false, want true")
	}
	if errors.Is(err, ErrTransport) {
		t.Fatalf("errors.Is(err, ErrTransport) = true, want false")
	}
	if !IsType(err, ErrorTypeBusy) {
		t.Errorf("IsType() = false, want true")
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message wins",
			err:  ErrProtocolFailure("ask", "Game not started"),
			want: "Game not started",
		},
		{
			name: "falls back to cause",
			err:  ErrTransportFailure("start", errors.New("connection refused")),
			want: "connection refused",
		},
		{
			name: "falls back to type",
			err:  NewError(ErrorTypeDecode, ""),
			want: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrMalformedLine(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := ErrMalformedLine(cause)
	if !errors.Is(err, ErrDecode) || errors.Is(err, ErrProtocol) {
		t.Errorf("ErrMalformedLine() does not match only ErrDecode: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("ErrMalformedLine() does not wrap its cause")
	}
	if got, want := err.Error(), "decode decode: malformed stream line"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorString(t *testing.T) {
	err := ErrWrongState("submit_choice", TurnRunning)
	want := "submit_choice invalid_state: not allowed while running"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var target *Error
	if !errors.As(err, &target) || target.Op != "submit_choice" {
		t.Errorf("errors.As() did not recover op")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %q, %v", m, got, err)
		}
	}
	if _, err := ParseMode("coop"); err == nil {
		t.Errorf("ParseMode(coop) expected error")
	}
}
