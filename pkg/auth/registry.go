package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ScopeMint must be present on claims presented to the mint endpoints.
const ScopeMint = "nft:mint"

var (
	// ErrInvalidToken is returned by Authorize when the provider rejects the bearer token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingScope is returned by Authorize for a valid token without ScopeMint.
	ErrMissingScope = errors.New("token lacks scope " + ScopeMint)
)

// Factory builds a validator from the JSON form of config.mintAuthConfig.
type Factory func(config json.RawMessage) (Validator, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterProvider makes a mint auth provider selectable through config.mintAuthProvider.
// Providers call it from init; registering the same name twice panics.
func RegisterProvider(name string, factory Factory) {
	name = normalize(name)
	if name == "" || factory == nil {
		panic("auth: RegisterProvider needs a name and a factory")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic("auth: provider " + name + " registered twice")
	}
	factories[name] = factory
}

// Providers lists registered provider names in order.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewMintValidator builds the validator guarding the mint routes from the mintAuthProvider and
// mintAuthConfig settings. An empty provider means the routes are open and yields a nil validator.
func NewMintValidator(provider string, config map[string]any) (Validator, error) {
	provider = normalize(provider)
	if provider == "" {
		return nil, nil
	}
	mu.RLock()
	factory, ok := factories[provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mint auth: unknown provider %q (registered: %s)", provider, strings.Join(Providers(), ", "))
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("mint auth %s: encode config: %w", provider, err)
	}
	v, err := factory(raw)
	if err != nil {
		return nil, fmt.Errorf("mint auth %s: %w", provider, err)
	}
	return v, nil
}

// Authorize validates a bearer token for minting.
func Authorize(v Validator, token string) (*Claims, error) {
	claims, err := v.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.HasScope(ScopeMint) {
		return claims, ErrMissingScope
	}
	return claims, nil
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }
