package cart

import (
	"context"
	"testing"
	"time"

	"apotekku/backend/internal/domain"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected miss for unknown session, found=%t err=%v", found, err)
	}

	saved := domain.Cart{
		SessionID: "sess-1",
		Items: []domain.CartItem{
			{DrugID: "DRG-A", DrugName: "Drug A", PriceCents: 2000, Quantity: 2},
		},
	}
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, found, err := store.Get(ctx, "sess-1")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%t err=%v", found, err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart contents: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be stamped on save")
	}

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := store.Get(ctx, "sess-1"); found {
		t.Fatalf("expected session gone after delete")
	}
}

func TestMemoryStoreExpiresStaleCarts(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	if err := store.Save(ctx, domain.Cart{SessionID: "sess-ttl", Items: []domain.CartItem{{DrugID: "DRG-A", Quantity: 1}}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	if _, found, _ := store.Get(ctx, "sess-ttl"); found {
		t.Fatalf("expected stale cart to be dropped")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	original := domain.Cart{
		SessionID: "sess-copy",
		Items:     []domain.CartItem{{DrugID: "DRG-A", Quantity: 1}},
	}
	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Mutating the slice we saved from must not leak into the store.
	original.Items[0].Quantity = 99

	first, _, _ := store.Get(ctx, "sess-copy")
	if first.Items[0].Quantity != 1 {
		t.Fatalf("caller mutation leaked into store: %+v", first.Items)
	}

	// Mutating a returned snapshot must not affect later reads.
	first.Items[0].Quantity = 42
	second, _, _ := store.Get(ctx, "sess-copy")
	if second.Items[0].Quantity != 1 {
		t.Fatalf("snapshot mutation leaked into store: %+v", second.Items)
	}
}
