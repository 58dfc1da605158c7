package cmd

import (
	"strings"
	"testing"
)

func TestLineScannerAcceptsLongLines(t *testing.T) {
	long := strings.Repeat("a", 200*1024)
	scanner := newLineScanner(strings.NewReader(long + "\nshort\n"))

	if !scanner.Scan() {
		t.Fatalf("Scan() = false on long line, err = %v", scanner.Err())
	}
	if got := len(scanner.Text()); got != len(long) {
		t.Fatalf("got %d bytes, want %d", got, len(long))
	}
	if !scanner.Scan() {
		t.Fatalf("Scan() = false on following line, err = %v", scanner.Err())
	}
	if scanner.Text() != "short" {
		t.Fatalf("second line = %q, want %q", scanner.Text(), "short")
	}
}
