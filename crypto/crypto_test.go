package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := NewAESSealer(testKey(t))
	if err != nil {
		t.Fatalf("NewAESSealer: %v", err)
	}
	plain := []byte(`{"refresh_token":"1//abc","updated_at":"2024-01-01T00:00:00Z"}`)
	blob, err := s.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(blob, []byte("refresh_token")) {
		t.Error("ciphertext leaks plaintext")
	}
	got, err := s.Open(blob)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := NewAESSealer(testKey(t))
	blob, _ := s.Seal([]byte("secret"))
	blob[len(blob)-1] ^= 0xff
	if _, err := s.Open(blob); err == nil {
		t.Error("tampered blob should not open")
	}
}

func TestNewAESSealerKeyValidation(t *testing.T) {
	cases := []string{
		"",
		"not-base64!!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
	}
	for _, key := range cases {
		if _, err := NewAESSealer(key); err == nil {
			t.Errorf("key %q should be rejected", key)
		}
	}
}

func TestOpenRejectsTruncatedBlob(t *testing.T) {
	s, _ := NewAESSealer(testKey(t))
	if _, err := s.Open([]byte{1, 2, 3}); err == nil {
		t.Error("truncated blob should not open")
	}
}
