package persistence

import (
	"testing"
	"time"
)

func TestRegisterProvider(t *testing.T) {
	// Create a mock factory
	mockFactory := func(config PluginConfig) (PluginPersistence, error) {
		return nil, nil
	}

	// Register the provider
	RegisterProvider("test", mockFactory)

	// List providers should include our test provider
	providers := ListProviders()
	found := false
	for _, p := range providers {
		if p == "test" {
			found = true
			break
		}
	}

	if !found {
		t.Errorf("Expected to find 'test' provider in list, got: %v", providers)
	}
}

func TestNewPersistenceUnknownProvider(t *testing.T) {
	cfg := ProviderConfig{
		Type:   "unknown_provider",
		Config: []byte("{}"),
	}

	pluginCfg := PluginConfig{}

	_, err := NewPersistence(cfg, pluginCfg)
	if err == nil {
		t.Error("Expected error for unknown provider, got nil")
	}
}

func TestNewPersistenceDefaultsClock(t *testing.T) {
	var got PluginConfig
	RegisterProvider("capture", func(config PluginConfig) (PluginPersistence, error) {
		got = config
		return nil, nil
	})

	_, err := NewPersistence(ProviderConfig{Type: "capture", Config: []byte(`{"a":1}`)}, PluginConfig{Retention: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Now == nil {
		t.Error("expected Now to default")
	}
	if string(got.Config) != `{"a":1}` {
		t.Errorf("expected provider config to be passed through, got %s", got.Config)
	}
	if got.Retention != time.Minute {
		t.Errorf("expected retention to be passed through, got %s", got.Retention)
	}
}
