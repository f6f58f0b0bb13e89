package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.HTTPListenAddr)
	}
	if cfg.StartingGrant != 50 {
		t.Fatalf("unexpected starting grant: %d", cfg.StartingGrant)
	}
	if cfg.AllowAutoVivify {
		t.Fatal("auto-vivify should default off")
	}
	if cfg.BalanceCacheTTL != 30*time.Second {
		t.Fatalf("unexpected balance cache ttl: %s", cfg.BalanceCacheTTL)
	}
	if cfg.CoinBundles[199] != 50 || cfg.CoinBundles[999] != 400 {
		t.Fatalf("unexpected default coin bundles: %v", cfg.CoinBundles)
	}
}

func TestLoadPricingOverrides(t *testing.T) {
	t.Setenv("PRICING_TABLE", "happy=1, golden=30")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PricingTable["happy"] != 1 || cfg.PricingTable["golden"] != 30 {
		t.Fatalf("unexpected pricing table: %v", cfg.PricingTable)
	}
}

func TestLoadRejectsMalformedBundles(t *testing.T) {
	t.Setenv("COIN_BUNDLES", "199:50")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed COIN_BUNDLES")
	}
}

func TestLoadRejectsNegativeGrant(t *testing.T) {
	t.Setenv("STARTING_GRANT", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative STARTING_GRANT")
	}
}
