package config

import (
	"testing"

	"apotekku/backend/internal/domain"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()

	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AuthSecret when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty ManagerPIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadAppliesFallbacks(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CART_TTL_MINUTES", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.CartTTLMinutes != 120 {
		t.Fatalf("expected cart TTL fallback 120, got %d", cfg.CartTTLMinutes)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected token TTL fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected address :8080, got %q", cfg.Address())
	}
}

func TestParseCancellableStatuses(t *testing.T) {
	got := parseCancellableStatuses("pending_payment_verification, processing")
	if len(got) != 2 || !got[domain.StatusPendingPayment] || !got[domain.StatusProcessing] {
		t.Fatalf("expected both listed statuses, got %v", got)
	}

	// Unknown and terminal entries are dropped.
	got = parseCancellableStatuses("processing, shipped, completed, cancelled")
	if len(got) != 1 || !got[domain.StatusProcessing] {
		t.Fatalf("expected only processing to survive, got %v", got)
	}

	// Nothing usable falls back to pending-only.
	for _, raw := range []string{"", "completed", "garbage"} {
		got = parseCancellableStatuses(raw)
		if len(got) != 1 || !got[domain.StatusPendingPayment] {
			t.Fatalf("expected pending-only fallback for %q, got %v", raw, got)
		}
	}
}
