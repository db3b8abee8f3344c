package internal

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestCytrusError_Is(t *testing.T) {
	err := ErrResolution.WithDetail("chunk", "abc").WithCause(io.EOF)
	wrapped := fmt.Errorf("syncing fragment: %w", err)

	if !errors.Is(wrapped, ErrResolution) {
		t.Error("wrapped error does not match ErrResolution")
	}
	if errors.Is(wrapped, ErrTransport) {
		t.Error("wrapped error matches ErrTransport")
	}
	if !errors.Is(wrapped, io.EOF) {
		t.Error("cause is not reachable")
	}
	if got := ErrorKind(wrapped); got != "RESOLUTION" {
		t.Errorf("ErrorKind = %q", got)
	}
	if got := ErrorKind(io.EOF); got != "" {
		t.Errorf("ErrorKind(io.EOF) = %q", got)
	}
}

func TestCytrusError_CopiesDoNotShareDetails(t *testing.T) {
	a := ErrIO.WithDetail("path", "a")
	b := a.WithDetail("path", "b")

	if a.Details["path"] != "a" || b.Details["path"] != "b" {
		t.Errorf("details leaked between copies: %v %v", a.Details, b.Details)
	}
	if len(ErrIO.Details) != 0 {
		t.Errorf("sentinel was modified: %v", ErrIO.Details)
	}
}

func TestCytrusError_Message(t *testing.T) {
	err := ioError("write", "out/a.bin", io.ErrShortWrite)
	msg := err.Error()
	for _, want := range []string{"[IO]", "could not write out/a.bin", io.ErrShortWrite.Error()} {
		if !strings.Contains(msg, want) {
			t.Errorf("%q does not contain %q", msg, want)
		}
	}
}
