package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port    int    `env:"PARTY_OVERVIEW_TEST_PORT" envDefault:"123"`
	Ruleset string `env:"PARTY_OVERVIEW_TEST_SYSTEM" envDefault:"daggerheart"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("Port = %d, want 123", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PARTY_OVERVIEW_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
