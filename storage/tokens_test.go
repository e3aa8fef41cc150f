package storage

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	if err != nil {
		t.Fatalf("NewTokenCipher failed: %v", err)
	}

	original := &TokenSet{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	sealed, err := c.Seal(original)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, []byte("ya29.access")) {
		t.Fatal("sealed payload leaks plaintext token")
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened.AccessToken != original.AccessToken || opened.RefreshToken != original.RefreshToken {
		t.Errorf("round trip mismatch: %+v", opened)
	}
	if !opened.Expiry.Equal(original.Expiry) {
		t.Errorf("expiry mismatch: %v vs %v", opened.Expiry, original.Expiry)
	}
}

func TestTokenCipherRejectsBadKey(t *testing.T) {
	if _, err := NewTokenCipher("not-hex"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := NewTokenCipher("abcd"); err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Errorf("expected key-length error, got %v", err)
	}
}

func TestTokenCipherRejectsTamperedCiphertext(t *testing.T) {
	c, _ := NewTokenCipher(testKey)
	sealed, err := c.Seal(&TokenSet{AccessToken: "tok"})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	sealed[len(sealed)-1] ^= 0xff
	if _, err := c.Open(sealed); err == nil {
		t.Error("tampered ciphertext must not decrypt")
	}
}

func TestTokenSetExpired(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"zero expiry never expires", time.Time{}, false},
		{"future expiry", time.Now().Add(time.Hour), false},
		{"past expiry", time.Now().Add(-time.Hour), true},
		{"inside refresh skew", time.Now().Add(30 * time.Second), true},
	}

	for _, tt := range tests {
		ts := &TokenSet{Expiry: tt.expiry}
		if got := ts.Expired(); got != tt.want {
			t.Errorf("%s: Expired() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
