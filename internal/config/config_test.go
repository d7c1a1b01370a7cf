package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port == "" {
		t.Error("expected default server port")
	}
	if cfg.Cache.TTL < 15*time.Second || cfg.Cache.TTL > 30*time.Second {
		// Default must sit in the supported expiry window unless overridden.
		if cfg.Cache.TTL != 15*time.Second {
			t.Errorf("unexpected default cache TTL: %v", cfg.Cache.TTL)
		}
	}
	if cfg.Locale == "" {
		t.Error("expected a default display locale")
	}
}

func TestValidateRequiresChainConfig(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty chain config")
	}

	cfg.Chain.RPCURL = "http://localhost:8545"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing escrow address")
	}

	cfg.Chain.EscrowAddress = "0x00000000000000000000000000000000000000aa"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing chain id")
	}

	cfg.Chain.ChainID = 11155111
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestParseTokenAllowlist(t *testing.T) {
	tokens, err := parseTokenAllowlist("0xAA11:DAI:18, 0xbb22:USDC:6")
	if err != nil {
		t.Fatalf("parseTokenAllowlist() error = %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Address != "0xaa11" {
		t.Errorf("addresses must be lowercased, got %s", tokens[0].Address)
	}
	if tokens[0].Symbol != "DAI" || tokens[0].Decimals == nil || *tokens[0].Decimals != 18 {
		t.Errorf("unexpected first token: %+v", tokens[0])
	}
	if tokens[1].Decimals == nil || *tokens[1].Decimals != 6 {
		t.Errorf("unexpected second token: %+v", tokens[1])
	}
}

func TestParseTokenAllowlistOptionalDecimals(t *testing.T) {
	tokens, err := parseTokenAllowlist("0xcc33:USDT")
	if err != nil {
		t.Fatalf("parseTokenAllowlist() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Decimals != nil {
		t.Fatalf("expected one token without decimals, got %+v", tokens)
	}
}

func TestParseTokenAllowlistRejectsMalformed(t *testing.T) {
	if _, err := parseTokenAllowlist("0xdd44"); err == nil {
		t.Error("expected error for entry without symbol")
	}
	if _, err := parseTokenAllowlist("0xdd44:DAI:banana"); err == nil {
		t.Error("expected error for non-numeric decimals")
	}
	if _, err := parseTokenAllowlist("0xdd44:DAI:300"); err == nil {
		t.Error("expected error for decimals out of the uint8 range")
	}
}

func TestAllowedTokenIsCaseInsensitive(t *testing.T) {
	cfg := &Config{Tokens: []TokenConfig{{Address: "0xaa11", Symbol: "DAI"}}}

	if _, ok := cfg.AllowedToken("0xAA11"); !ok {
		t.Error("expected lookup to ignore address casing")
	}
	if _, ok := cfg.AllowedToken("0xffff"); ok {
		t.Error("expected unknown address to be rejected")
	}
}
