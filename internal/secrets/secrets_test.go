package secrets

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	box, err := New("correct horse battery staple")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := box.Encrypt("sk-live-123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if token == "sk-live-123" {
		t.Fatalf("token must not be plaintext")
	}
	got, err := box.Decrypt(token)
	if err != nil || got != "sk-live-123" {
		t.Fatalf("Decrypt = %q, %v", got, err)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	a, _ := New("one")
	b, _ := New("two")
	token, err := a.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := a.Decrypt("not-a-token"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}

func TestEmptyValues(t *testing.T) {
	if _, err := New("  "); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
	box, _ := New("k")
	if got, err := box.Decrypt(""); got != "" || err != nil {
		t.Fatalf("empty token should decrypt to empty, got %q %v", got, err)
	}
	if len(box.KeyString()) != 44 {
		t.Fatalf("unexpected key encoding length %d", len(box.KeyString()))
	}
}
