package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("demo123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "demo123" {
		t.Fatal("hash must not equal the password")
	}
	if err := h.Compare(hash, "demo123"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "demo124"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestBcryptHasherDefaultsCost(t *testing.T) {
	h := NewBcryptHasher(0)
	if h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	err := h.Compare("not-a-hash", "demo123")
	if err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected a hash format error, got %v", err)
	}
}
