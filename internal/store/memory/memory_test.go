package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

func seedLedgerDrug(t *testing.T, s *Store, batches []domain.StockBatch) domain.Drug {
	t.Helper()
	ctx := context.Background()

	drug, err := s.CreateDrug(ctx, domain.Drug{Name: "Ledger Test Drug", Unit: "tablet"})
	if err != nil {
		t.Fatalf("create drug failed: %v", err)
	}
	for i := range batches {
		batches[i].DrugID = drug.ID
		if _, err := s.CreateStockBatch(ctx, batches[i]); err != nil {
			t.Fatalf("create batch %d failed: %v", i, err)
		}
	}
	return *drug
}

func daysFromNow(days int) *time.Time {
	d := time.Now().UTC().AddDate(0, 0, days)
	return &d
}

func TestConsumptionOrderPutsNilExpiryLast(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	drug := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "NO-EXPIRY", Quantity: 10, SellingPriceCents: 1000, ReceivedAt: time.Now().UTC().AddDate(0, 0, -10)},
		{BatchNumber: "SOON", Quantity: 4, SellingPriceCents: 1000, ExpiryDate: daysFromNow(20), ReceivedAt: time.Now().UTC()},
		{BatchNumber: "LATER", Quantity: 4, SellingPriceCents: 1000, ExpiryDate: daysFromNow(90), ReceivedAt: time.Now().UTC()},
	})

	sale := domain.Sale{
		OrderType:     domain.OrderTypeInPerson,
		StockDeducted: true,
		PaymentMethod: "cash",
		Items:         []domain.SaleItem{{DrugID: drug.ID, Quantity: 9}},
	}
	if _, err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	// 4 from SOON, 4 from LATER, and only then 1 from the undated batch.
	batches, err := s.ListStockBatches(ctx, drug.ID, true, 100)
	if err != nil {
		t.Fatalf("list batches failed: %v", err)
	}
	want := map[string]int{"SOON": 0, "LATER": 0, "NO-EXPIRY": 9}
	for _, b := range batches {
		expected, tracked := want[b.BatchNumber]
		if tracked && b.Quantity != expected {
			t.Fatalf("batch %s expected qty %d, got %d", b.BatchNumber, expected, b.Quantity)
		}
	}
}

func TestExpiredBatchesAreInvisibleToSales(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	drug := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "EXPIRED", Quantity: 50, SellingPriceCents: 1000, ExpiryDate: daysFromNow(-1)},
		{BatchNumber: "FRESH", Quantity: 3, SellingPriceCents: 1000, ExpiryDate: daysFromNow(60)},
	})

	available, err := s.GetAvailableQuantity(ctx, drug.ID)
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if available != 3 {
		t.Fatalf("expected expired stock excluded, got %d", available)
	}

	_, err = s.CreateSale(ctx, domain.Sale{
		OrderType:     domain.OrderTypeInPerson,
		StockDeducted: true,
		PaymentMethod: "cash",
		Items:         []domain.SaleItem{{DrugID: drug.ID, Quantity: 4}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The expired batch is untouched even on the failure path.
	batches, _ := s.ListStockBatches(ctx, drug.ID, true, 100)
	for _, b := range batches {
		if b.BatchNumber == "EXPIRED" && b.Quantity != 50 {
			t.Fatalf("expired batch mutated: %d", b.Quantity)
		}
	}
}

func TestMultiLineSaleFailureTouchesNothing(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	covered := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "OK", Quantity: 10, SellingPriceCents: 1000, ExpiryDate: daysFromNow(60)},
	})
	short := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "SHORT", Quantity: 1, SellingPriceCents: 1000, ExpiryDate: daysFromNow(60)},
	})

	_, err := s.CreateSale(ctx, domain.Sale{
		OrderType:     domain.OrderTypeInPerson,
		StockDeducted: true,
		PaymentMethod: "cash",
		Items: []domain.SaleItem{
			{DrugID: covered.ID, Quantity: 5},
			{DrugID: short.ID, Quantity: 2},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if qty, _ := s.GetAvailableQuantity(ctx, covered.ID); qty != 10 {
		t.Fatalf("covered line must be untouched after failure, got %d", qty)
	}
	if qty, _ := s.GetAvailableQuantity(ctx, short.ID); qty != 1 {
		t.Fatalf("short line must be untouched after failure, got %d", qty)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	drug := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "POOL", Quantity: 10, SellingPriceCents: 1000, ExpiryDate: daysFromNow(60)},
	})

	var wg sync.WaitGroup
	succeeded := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.CreateSale(ctx, domain.Sale{
				ID:            fmt.Sprintf("sale-conc-%d", n),
				OrderType:     domain.OrderTypeInPerson,
				StockDeducted: true,
				PaymentMethod: "cash",
				Items:         []domain.SaleItem{{DrugID: drug.ID, Quantity: 1}},
			})
			if err == nil {
				succeeded <- struct{}{}
			} else if !errors.Is(err, store.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	close(succeeded)

	wins := 0
	for range succeeded {
		wins++
	}
	if wins != 10 {
		t.Fatalf("expected exactly 10 sales to win, got %d", wins)
	}
	if qty, _ := s.GetAvailableQuantity(ctx, drug.ID); qty != 0 {
		t.Fatalf("expected pool drained to 0, got %d", qty)
	}
}

func TestSellingPriceFollowsFEFOHead(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	drug := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "OLD-PRICE", Quantity: 2, SellingPriceCents: 1500, ExpiryDate: daysFromNow(30)},
		{BatchNumber: "NEW-PRICE", Quantity: 5, SellingPriceCents: 1800, ExpiryDate: daysFromNow(120)},
	})

	prices, err := s.GetSellingPrices(ctx, []string{drug.ID})
	if err != nil {
		t.Fatalf("prices failed: %v", err)
	}
	if prices[drug.ID] != 1500 {
		t.Fatalf("expected head price 1500, got %d", prices[drug.ID])
	}

	// Drain the head batch; the price follows the next batch in line.
	_, err = s.CreateSale(ctx, domain.Sale{
		OrderType:     domain.OrderTypeInPerson,
		StockDeducted: true,
		PaymentMethod: "cash",
		Items:         []domain.SaleItem{{DrugID: drug.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	prices, err = s.GetSellingPrices(ctx, []string{drug.ID})
	if err != nil {
		t.Fatalf("prices failed: %v", err)
	}
	if prices[drug.ID] != 1800 {
		t.Fatalf("expected head price to advance to 1800, got %d", prices[drug.ID])
	}
}

func TestExpiringReportUsesDayGranularity(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	expiry := time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)
	seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "DAY-EDGE", Quantity: 5, SellingPriceCents: 1000, ExpiryDate: &expiry},
	})

	contains := func(batches []domain.StockBatch) bool {
		for _, b := range batches {
			if b.BatchNumber == "DAY-EDGE" {
				return true
			}
		}
		return false
	}

	// A cutoff later the same day does not count the batch as expiring
	// before that day.
	sameDay, err := s.ListExpiringBatches(ctx, expiry.Add(6*time.Hour), 100)
	if err != nil {
		t.Fatalf("list expiring failed: %v", err)
	}
	if contains(sameDay) {
		t.Fatalf("batch expiring on the cutoff day must not be reported")
	}

	nextDay, err := s.ListExpiringBatches(ctx, expiry.AddDate(0, 0, 1), 100)
	if err != nil {
		t.Fatalf("list expiring failed: %v", err)
	}
	if !contains(nextDay) {
		t.Fatalf("batch expiring before the cutoff day must be reported")
	}
}

func TestCancelSaleCreatesReturnBatch(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	drug := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "STOCK", Quantity: 10, SellingPriceCents: 1000, ExpiryDate: daysFromNow(60)},
	})

	created, err := s.CreateSale(ctx, domain.Sale{
		OrderType:     domain.OrderTypePickup,
		OrderStatus:   domain.StatusPendingPayment,
		PaymentStatus: domain.PaymentStatusPending,
		Items:         []domain.SaleItem{{DrugID: drug.ID, Quantity: 6, UnitPriceCents: 1000}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := s.VerifyPayment(ctx, created.ID); err != nil {
		t.Fatalf("verify payment failed: %v", err)
	}

	cancellable := map[domain.OrderStatus]bool{
		domain.StatusPendingPayment: true,
		domain.StatusProcessing:     true,
	}
	cancelled, err := s.CancelSale(ctx, created.ID, "damaged packaging", cancellable)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.StockDeducted {
		t.Fatalf("expected deduction flag cleared after return")
	}
	if cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled_at stamp")
	}

	batches, _ := s.ListStockBatches(ctx, drug.ID, true, 100)
	foundReturn := false
	for _, b := range batches {
		if b.SourceType == domain.BatchSourceReturn {
			foundReturn = true
			if b.Quantity != 6 {
				t.Fatalf("expected return batch qty 6, got %d", b.Quantity)
			}
			if b.SourceID != created.ID {
				t.Fatalf("expected return batch linked to sale, got %s", b.SourceID)
			}
		}
	}
	if !foundReturn {
		t.Fatalf("expected a return batch after cancellation")
	}

	if qty, _ := s.GetAvailableQuantity(ctx, drug.ID); qty != 10 {
		t.Fatalf("expected availability restored to 10, got %d", qty)
	}

	// Cancelling again hits the terminal state.
	if _, err := s.CancelSale(ctx, created.ID, "again", cancellable); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on re-cancel, got %v", err)
	}
}

func TestDirectStatusUpdateRejectsGuardedStates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	drug := seedLedgerDrug(t, s, []domain.StockBatch{
		{BatchNumber: "STOCK", Quantity: 5, SellingPriceCents: 1000, ExpiryDate: daysFromNow(60)},
	})
	created, err := s.CreateSale(ctx, domain.Sale{
		OrderType:     domain.OrderTypePickup,
		OrderStatus:   domain.StatusPendingPayment,
		PaymentStatus: domain.PaymentStatusPending,
		Items:         []domain.SaleItem{{DrugID: drug.ID, Quantity: 1, UnitPriceCents: 1000}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if _, err := s.UpdateSaleStatus(ctx, created.ID, domain.StatusProcessing); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected processing to require payment verification, got %v", err)
	}
	if _, err := s.UpdateSaleStatus(ctx, created.ID, domain.StatusCancelled); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected cancelled to require the cancel operation, got %v", err)
	}
}
