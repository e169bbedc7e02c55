package auth_test

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/osvaldoandrade/nftminter/pkg/auth"
	_ "github.com/osvaldoandrade/nftminter/pkg/auth/hmac"
	_ "github.com/osvaldoandrade/nftminter/pkg/auth/static"
)

const hmacSecret = "fedcba9876543210fedcba9876543210"

func mintJWT(t *testing.T, scope string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "deployer",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": scope,
	}).SignedString([]byte(hmacSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestProvidersListsBuiltins(t *testing.T) {
	got := auth.Providers()
	if !slices.Contains(got, "hmac") || !slices.Contains(got, "static") {
		t.Fatalf("providers = %v", got)
	}
	if !slices.IsSorted(got) {
		t.Errorf("providers not sorted: %v", got)
	}
}

func TestNewMintValidatorStatic(t *testing.T) {
	v, err := auth.NewMintValidator(" STATIC ", map[string]any{"token": "mint-secret"})
	if err != nil {
		t.Fatalf("NewMintValidator: %v", err)
	}
	claims, err := auth.Authorize(v, "mint-secret")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !claims.HasScope(auth.ScopeMint) {
		t.Errorf("static token should carry %s, got %v", auth.ScopeMint, claims.Scopes)
	}
	if _, err := auth.Authorize(v, "other"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	readOnly, err := auth.NewMintValidator("static", map[string]any{"token": "viewer", "scopes": []string{"nft:read"}})
	if err != nil {
		t.Fatalf("NewMintValidator: %v", err)
	}
	if _, err := auth.Authorize(readOnly, "viewer"); !errors.Is(err, auth.ErrMissingScope) {
		t.Errorf("expected ErrMissingScope, got %v", err)
	}
}

func TestNewMintValidatorHMAC(t *testing.T) {
	v, err := auth.NewMintValidator("hmac", map[string]any{"secret": hmacSecret})
	if err != nil {
		t.Fatalf("NewMintValidator: %v", err)
	}

	claims, err := auth.Authorize(v, mintJWT(t, "nft:read nft:mint"))
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if claims.Subject != "deployer" {
		t.Errorf("subject = %q", claims.Subject)
	}

	claims, err = auth.Authorize(v, mintJWT(t, "nft:read"))
	if !errors.Is(err, auth.ErrMissingScope) {
		t.Fatalf("expected ErrMissingScope, got %v", err)
	}
	if claims == nil || claims.Subject != "deployer" {
		t.Errorf("claims should still be returned on a scope miss, got %+v", claims)
	}

	if _, err := auth.Authorize(v, "not-a-jwt"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewMintValidatorWithoutProviderIsOpen(t *testing.T) {
	v, err := auth.NewMintValidator("  ", map[string]any{"token": "ignored"})
	if err != nil || v != nil {
		t.Fatalf("expected nil validator and no error, got %v, %v", v, err)
	}
}

func TestNewMintValidatorErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		config   map[string]any
		contains string
	}{
		{name: "unknown provider", provider: "jwks", contains: "registered: hmac, static"},
		{name: "static without token", provider: "static", contains: "mint auth static"},
		{name: "hmac short secret", provider: "hmac", config: map[string]any{"secret": "short"}, contains: "mint auth hmac"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewMintValidator(tt.provider, tt.config)
			if err == nil || !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("expected error containing %q, got %v", tt.contains, err)
			}
		})
	}
}

func TestRegisterProviderTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	auth.RegisterProvider("static", nil)
}
