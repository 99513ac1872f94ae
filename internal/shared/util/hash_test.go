package util

import (
	"errors"
	"strings"
	"testing"
)

func TestHashKey(t *testing.T) {
	id := "3f0c9a4e-session"
	got := HashKey(id)
	if got != HashKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
	if short := ShortHash(id); short != got[:12] {
		t.Fatalf("unexpected short hash %s", short)
	}
}

func TestSanitizeError(t *testing.T) {
	if got := SanitizeError(nil); got != "" {
		t.Fatalf("expected empty string for nil, got %q", got)
	}
	got := SanitizeError(errors.New("line one\nline two\r\n"))
	if strings.ContainsAny(got, "\r\n") {
		t.Fatalf("expected newlines stripped, got %q", got)
	}
	long := SanitizeError(errors.New(strings.Repeat("x", 900)))
	if len(long) != maxErrorLength {
		t.Fatalf("expected truncation to %d, got %d", maxErrorLength, len(long))
	}
}

func TestSanitizeFileName(t *testing.T) {
	if _, err := SanitizeFileName("../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	got, err := SanitizeFileName(" opt/notice.pdf ")
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if got != "opt_notice.pdf" {
		t.Fatalf("unexpected name %q", got)
	}
}
