package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "catalog-test", time.Hour)
	user := &domain.User{ID: "u-1", Email: "admin@example.com", Role: domain.RoleAdmin}

	token, err := tm.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != "u-1" || claims.Subject != "u-1" || claims.Email != user.Email {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.IsAdmin() {
		t.Fatal("expected admin claims")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "catalog-test", time.Hour)
	user := &domain.User{ID: "u-1", Email: "a@example.com", Role: domain.RoleUser}

	other := NewTokenManager("other-secret", "catalog-test", time.Hour)
	forged, _ := other.GenerateToken(user)
	if _, err := tm.ValidateToken(forged); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}

	expired := NewTokenManager("secret", "catalog-test", time.Nanosecond)
	token, _ := expired.GenerateToken(user)
	time.Sleep(time.Millisecond)
	if _, err := tm.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	foreign := NewTokenManager("secret", "someone-else", time.Hour)
	token, _ = foreign.GenerateToken(user)
	if _, err := tm.ValidateToken(token); err == nil {
		t.Fatal("expected foreign issuer to be rejected")
	}

	if _, err := tm.GenerateToken(&domain.User{}); err == nil {
		t.Fatal("expected error for user without id")
	}
}

func TestExtractToken(t *testing.T) {
	if tok, err := ExtractToken("Bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("got %q, %v", tok, err)
	}
	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer a b", "Bearer "} {
		if _, err := ExtractToken(h); err == nil {
			t.Errorf("expected error for header %q", h)
		}
	}
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "secret123" {
		t.Fatal("hash must not equal the plaintext")
	}

	ok, err := h.Compare(hash, "secret123")
	if err != nil || !ok {
		t.Fatalf("expected match, got %v, %v", ok, err)
	}
	ok, err = h.Compare(hash, "wrong")
	if err != nil || ok {
		t.Fatalf("expected mismatch without error, got %v, %v", ok, err)
	}
	if _, err := h.Compare("not-a-hash", "secret123"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
