package hmac

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/osvaldoandrade/nftminter/pkg/auth"
)

type validatorConfig struct {
	// Secret is the shared HS256 signing key.
	Secret   string `json:"secret"`
	Issuer   string `json:"issuer,omitempty"`
	Audience string `json:"audience,omitempty"`

	ClockSkewSeconds int `json:"clockSkewSeconds,omitempty"`
}

// Validator accepts HS256 JWTs signed with a shared secret.
type Validator struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

func NewValidatorFromJSON(raw json.RawMessage) (auth.Validator, error) {
	var cfg validatorConfig
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("hmac auth: missing config")
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("hmac auth: invalid config: %w", err)
	}
	if len(cfg.Secret) < 16 {
		return nil, errors.New("hmac auth: secret must be at least 16 bytes")
	}
	if cfg.ClockSkewSeconds <= 0 {
		cfg.ClockSkewSeconds = 30
	}
	return &Validator{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   time.Duration(cfg.ClockSkewSeconds) * time.Second,
	}, nil
}

// Validate checks signature, expiry and, when configured, issuer and audience
func (v *Validator) Validate(tokenString string) (*auth.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	out := &auth.Claims{Raw: claims}
	out.Subject, _ = claims.GetSubject()
	out.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		out.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if scope, ok := claims["scope"].(string); ok {
		out.Scopes = strings.Fields(scope)
	}
	return out, nil
}

func init() {
	auth.RegisterProvider("hmac", NewValidatorFromJSON)
}
