package config

import "testing"

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.API.Key = "key-id"
	cfg.API.Secret = "c2VjcmV0"
	cfg.API.Passphrase = "phrase"
	cfg.Redis.Password = "redis-pw"
	cfg.Notify.TelegramToken = "123:abc"

	out := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"wallet private key": out.Wallet.PrivateKey,
		"api key":            out.API.Key,
		"api secret":         out.API.Secret,
		"api passphrase":     out.API.Passphrase,
		"redis password":     out.Redis.Password,
		"telegram token":     out.Notify.TelegramToken,
	} {
		if got != "***" {
			t.Errorf("%s = %q, not redacted", name, got)
		}
	}

	// The original is untouched.
	if cfg.Wallet.PrivateKey != "0xdeadbeef" {
		t.Error("RedactedConfig mutated the source config")
	}

	// Empty secrets stay empty rather than gaining a placeholder.
	if out.Postgres.Password != "" {
		t.Errorf("empty secret = %q, want empty", out.Postgres.Password)
	}

	// Non-secret fields survive.
	if out.Trading.TradeSize != cfg.Trading.TradeSize {
		t.Error("non-secret field changed")
	}
}

func TestRedactedConfig_BucketsCopied(t *testing.T) {
	cfg := Defaults()
	out := RedactedConfig(&cfg)

	if len(out.Exits.Buckets) != len(cfg.Exits.Buckets) {
		t.Fatalf("buckets = %d, want %d", len(out.Exits.Buckets), len(cfg.Exits.Buckets))
	}
	out.Exits.Buckets[0].TPPct = 99
	if cfg.Exits.Buckets[0].TPPct == 99 {
		t.Error("mutating the copy reached the original bucket slice")
	}
}
