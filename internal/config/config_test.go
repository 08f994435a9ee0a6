package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("OFFER_SOURCE_URL")
	os.Unsetenv("LLM_MODEL")
	os.Unsetenv("TWILIO_BASE_URL")

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.Offers.BaseURL != "http://localhost:8090" {
		t.Fatalf("expected default offer source url, got %q", c.Offers.BaseURL)
	}
	if c.LLM.Model != "gpt-4o" {
		t.Fatalf("expected default llm model gpt-4o, got %q", c.LLM.Model)
	}
	if c.Dialer.BaseURL != "https://api.twilio.com/2010-04-01" {
		t.Fatalf("expected default dialer base url, got %q", c.Dialer.BaseURL)
	}
	if c.Channel.TokenTTLMin != 60 {
		t.Fatalf("expected default token ttl 60, got %d", c.Channel.TokenTTLMin)
	}
}

func TestEnvOverrides(t *testing.T) {
	os.Setenv("PORT", "9191")
	os.Setenv("LLM_MODEL", "gpt-4o-mini")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("LLM_MODEL")

	c := Load()
	if c.Server.Port != "9191" {
		t.Fatalf("expected port 9191, got %q", c.Server.Port)
	}
	if c.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("expected model override, got %q", c.LLM.Model)
	}
}
