package static

import (
	"encoding/json"
	"testing"

	"github.com/osvaldoandrade/nftminter/pkg/auth"
)

func TestStaticValidator(t *testing.T) {
	raw := json.RawMessage(`{"token":"t-1","subject":"s-1","scopes":["nft:mint","nft:read"],"raw":{"role":"ops"}}`)
	v, err := NewValidatorFromJSON(raw)
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}

	claims, err := v.Validate("t-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "s-1" {
		t.Fatalf("expected subject s-1, got %q", claims.Subject)
	}
	if !claims.HasScope("nft:read") {
		t.Fatalf("expected scope present")
	}
	if claims.Raw["role"] != "ops" {
		t.Fatalf("expected raw role, got %v", claims.Raw)
	}

	if _, err := v.Validate("wrong"); err == nil {
		t.Fatalf("expected validation error for wrong token")
	}
}

func TestStaticValidator_StringConfig(t *testing.T) {
	raw := json.RawMessage(`"t-2"`)
	v, err := NewValidatorFromJSON(raw)
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}
	claims, err := v.Validate(" t-2 ")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "static" {
		t.Fatalf("expected default subject, got %q", claims.Subject)
	}
	if !claims.HasScope(auth.ScopeMint) {
		t.Fatalf("expected default mint scope, got %v", claims.Scopes)
	}
}

func TestStaticValidator_MissingToken(t *testing.T) {
	for _, raw := range []string{``, `{}`, `{"token":"  "}`, `""`} {
		if _, err := NewValidatorFromJSON(json.RawMessage(raw)); err == nil {
			t.Errorf("expected error for config %q", raw)
		}
	}
}

func TestStaticProviderRegistered(t *testing.T) {
	v, err := auth.NewMintValidator("Static", map[string]any{"token": "abc"})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if _, err := v.Validate("abc"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
