package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type Store struct {
	mu            sync.RWMutex
	drugs         map[string]domain.Drug
	batchesByDrug map[string][]domain.StockBatch
	salesByID     map[string]*domain.Sale
	customersByID map[string]domain.Customer
	auditLogs     []domain.AuditLog
	usersByName   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_PHARMACIST_PASSWORD;
// hardcoded dev defaults are used with a warning when unset. Production
// deployments use PostgreSQL (DATABASE_URL) and never touch these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	pharmacistPwd := envOr("SEED_PHARMACIST_PASSWORD", "apotek123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_PHARMACIST_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_PHARMACIST_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"pharmacist", pharmacistPwd, domain.RolePharmacist},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	drugs := []domain.Drug{
		{ID: "DRG-PARA-500", Name: "Paracetamol 500mg", Brand: "Sanmol", Dosage: "500mg", Unit: "tablet", Active: true},
		{ID: "DRG-AMOX-500", Name: "Amoxicillin 500mg", Brand: "Amoxsan", Dosage: "500mg", Unit: "capsule", Active: true},
		{ID: "DRG-CETI-10", Name: "Cetirizine 10mg", Brand: "Incidal", Dosage: "10mg", Unit: "tablet", Active: true},
		{ID: "DRG-OMEP-20", Name: "Omeprazole 20mg", Brand: "Pumpitor", Dosage: "20mg", Unit: "capsule", Active: true},
		{ID: "DRG-IBUP-400", Name: "Ibuprofen 400mg", Brand: "Proris", Dosage: "400mg", Unit: "tablet", Active: true},
		{ID: "DRG-ORS-200", Name: "Oralit 200ml", Brand: "Pharolit", Dosage: "200ml", Unit: "sachet", Active: true},
		{ID: "DRG-VITC-500", Name: "Vitamin C 500mg", Brand: "Vitacimin", Dosage: "500mg", Unit: "tablet", Active: true},
		{ID: "DRG-ANTA-200", Name: "Antacid Suspension", Brand: "Mylanta", Dosage: "200ml", Unit: "bottle", Active: true},
	}

	now := time.Now().UTC()
	nearExpiry := now.AddDate(0, 2, 0)
	farExpiry := now.AddDate(1, 0, 0)

	drugMap := make(map[string]domain.Drug, len(drugs))
	batches := make(map[string][]domain.StockBatch, len(drugs))
	for i, d := range drugs {
		drugMap[d.ID] = d
		price := int64(2500 + i*1500)
		batches[d.ID] = []domain.StockBatch{
			{
				ID:                 xid.New("batch"),
				DrugID:             d.ID,
				BatchNumber:        fmt.Sprintf("SEED-%s-A", d.ID),
				Quantity:           40,
				PurchasePriceCents: price * 7 / 10,
				SellingPriceCents:  price,
				ExpiryDate:         &nearExpiry,
				Location:           "rack-1",
				Supplier:           "PT Kimia Sejahtera",
				SourceType:         domain.BatchSourceIntake,
				ReceivedAt:         now.AddDate(0, -1, 0),
			},
			{
				ID:                 xid.New("batch"),
				DrugID:             d.ID,
				BatchNumber:        fmt.Sprintf("SEED-%s-B", d.ID),
				Quantity:           80,
				PurchasePriceCents: price * 7 / 10,
				SellingPriceCents:  price,
				ExpiryDate:         &farExpiry,
				Location:           "rack-2",
				Supplier:           "PT Kimia Sejahtera",
				SourceType:         domain.BatchSourceIntake,
				ReceivedAt:         now,
			},
		}
	}

	return &Store{
		drugs:         drugMap,
		batchesByDrug: batches,
		salesByID:     make(map[string]*domain.Sale),
		customersByID: make(map[string]domain.Customer),
		auditLogs:     make([]domain.AuditLog, 0, 128),
		usersByName:   seedUsers(),
	}
}

// --- Drugs ---

func (s *Store) ListDrugs(_ context.Context, includeInactive bool) ([]domain.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drugs := make([]domain.Drug, 0, len(s.drugs))
	for _, d := range s.drugs {
		if !includeInactive && !d.Active {
			continue
		}
		drugs = append(drugs, d)
	}
	slices.SortFunc(drugs, func(a, b domain.Drug) int {
		return cmpString(a.Name, b.Name)
	})
	return drugs, nil
}

func (s *Store) CreateDrug(_ context.Context, drug domain.Drug) (*domain.Drug, error) {
	if drug.Name == "" || drug.Unit == "" {
		return nil, store.ErrInvalidInput
	}
	if drug.ID == "" {
		drug.ID = xid.New("drug")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.drugs[drug.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	drug.Active = true
	s.drugs[drug.ID] = drug
	created := drug
	return &created, nil
}

func (s *Store) GetDrugByID(_ context.Context, id string) (*domain.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drug, exists := s.drugs[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := drug
	return &copied, nil
}

func (s *Store) UpdateDrug(_ context.Context, drug domain.Drug) (*domain.Drug, error) {
	if drug.Name == "" || drug.Unit == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.drugs[drug.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.drugs[drug.ID] = drug
	updated := drug
	return &updated, nil
}

func (s *Store) GetDrugsByIDs(_ context.Context, ids []string) (map[string]domain.Drug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Drug, len(ids))
	for _, id := range ids {
		if d, ok := s.drugs[id]; ok && d.Active {
			result[id] = d
		}
	}
	return result, nil
}

// --- Stock ledger ---

func (s *Store) CreateStockBatch(_ context.Context, batch domain.StockBatch) (*domain.StockBatch, error) {
	if batch.DrugID == "" || batch.Quantity < 1 || batch.SellingPriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if strings.TrimSpace(batch.BatchNumber) == "" {
		batch.BatchNumber = "MANUAL-" + batch.ID
	}
	if batch.SourceType == "" {
		batch.SourceType = domain.BatchSourceIntake
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.drugs[batch.DrugID]; !exists {
		return nil, store.ErrNotFound
	}
	s.batchesByDrug[batch.DrugID] = append(s.batchesByDrug[batch.DrugID], batch)
	created := batch
	return &created, nil
}

func (s *Store) ListStockBatches(_ context.Context, drugID string, includeExpired bool, limit int) ([]domain.StockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	today := dateUTC(time.Now().UTC())
	result := make([]domain.StockBatch, 0, limit)

	appendBatch := func(batch domain.StockBatch) {
		if !includeExpired && batch.ExpiryDate != nil && batch.ExpiryDate.Before(today) {
			return
		}
		result = append(result, batch)
	}

	if drugID != "" {
		for _, batch := range s.batchesByDrug[drugID] {
			appendBatch(batch)
		}
	} else {
		for _, batches := range s.batchesByDrug {
			for _, batch := range batches {
				appendBatch(batch)
			}
		}
	}

	slices.SortFunc(result, compareBatchFEFO)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetAvailableQuantity(_ context.Context, drugID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.drugs[drugID]; !exists {
		return 0, store.ErrNotFound
	}
	return s.availableLocked(drugID), nil
}

func (s *Store) GetAvailableQuantities(_ context.Context, drugIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int, len(drugIDs))
	for _, id := range drugIDs {
		result[id] = s.availableLocked(id)
	}
	return result, nil
}

func (s *Store) GetSellingPrices(_ context.Context, drugIDs []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := dateUTC(time.Now().UTC())
	result := make(map[string]int64, len(drugIDs))
	for _, id := range drugIDs {
		eligible := eligibleBatchesLocked(s.batchesByDrug[id], today)
		if len(eligible) > 0 {
			result[id] = eligible[0].SellingPriceCents
		}
	}
	return result, nil
}

func (s *Store) ListExpiringBatches(_ context.Context, before time.Time, limit int) ([]domain.StockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	cutoff := dateUTC(before)
	result := make([]domain.StockBatch, 0, limit)
	for _, batches := range s.batchesByDrug {
		for _, batch := range batches {
			if batch.Quantity < 1 || batch.ExpiryDate == nil {
				continue
			}
			if batch.ExpiryDate.Before(cutoff) {
				result = append(result, batch)
			}
		}
	}
	slices.SortFunc(result, compareBatchFEFO)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// availableLocked sums non-expired batch quantities. Callers hold s.mu.
func (s *Store) availableLocked(drugID string) int {
	today := dateUTC(time.Now().UTC())
	total := 0
	for _, batch := range s.batchesByDrug[drugID] {
		if batch.Quantity < 1 {
			continue
		}
		if batch.ExpiryDate != nil && batch.ExpiryDate.Before(today) {
			continue
		}
		total += batch.Quantity
	}
	return total
}

// deductLocked consumes quantities FEFO across a sale's items. It checks
// every line before mutating anything so a failure leaves batches intact.
// Callers hold s.mu for writing.
func (s *Store) deductLocked(items []domain.SaleItem) error {
	for _, item := range items {
		if s.availableLocked(item.DrugID) < item.Quantity {
			return store.ErrInsufficientStock
		}
	}

	today := dateUTC(time.Now().UTC())
	for _, item := range items {
		remaining := item.Quantity
		batches := s.batchesByDrug[item.DrugID]
		order := eligibleIndexesFEFO(batches, today)
		for _, idx := range order {
			if remaining == 0 {
				break
			}
			used := remaining
			if used > batches[idx].Quantity {
				used = batches[idx].Quantity
			}
			batches[idx].Quantity -= used
			remaining -= used
		}
		if remaining > 0 {
			return store.ErrInsufficientStock
		}
	}
	return nil
}

// returnLocked adds quantities back as fresh return batches rather than
// mutating whichever batch happens to exist. Callers hold s.mu.
func (s *Store) returnLocked(saleID string, items []domain.SaleItem, at time.Time) {
	for _, item := range items {
		s.batchesByDrug[item.DrugID] = append(s.batchesByDrug[item.DrugID], domain.StockBatch{
			ID:                 xid.New("batch"),
			DrugID:             item.DrugID,
			BatchNumber:        "RET-" + saleID,
			Quantity:           item.Quantity,
			PurchasePriceCents: item.UnitPriceCents,
			SellingPriceCents:  item.UnitPriceCents,
			SourceType:         domain.BatchSourceReturn,
			SourceID:           saleID,
			ReceivedAt:         at,
		})
	}
}

// --- Sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}
	if !domain.ValidOrderType(sale.OrderType) {
		return nil, store.ErrInvalidOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := dateUTC(time.Now().UTC())
	total := int64(0)
	recomputed := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		drug, exists := s.drugs[item.DrugID]
		if !exists || !drug.Active {
			return nil, fmt.Errorf("drug %s unavailable", item.DrugID)
		}

		unitPrice := item.UnitPriceCents
		if sale.StockDeducted {
			// In-person flow: price is authoritative from the FEFO head
			// inside the same critical section as the deduction.
			eligible := eligibleBatchesLocked(s.batchesByDrug[item.DrugID], today)
			if len(eligible) == 0 {
				return nil, store.ErrInsufficientStock
			}
			unitPrice = eligible[0].SellingPriceCents
		}
		if unitPrice < 1 {
			return nil, store.ErrInvalidInput
		}

		subtotal := unitPrice * int64(item.Quantity)
		recomputed = append(recomputed, domain.SaleItem{
			DrugID:         item.DrugID,
			DrugName:       drug.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: unitPrice,
			SubtotalCents:  subtotal,
		})
		total += subtotal
	}

	if sale.DiscountCents < 0 || sale.DiscountCents > total {
		return nil, store.ErrInvalidDiscount
	}

	if sale.StockDeducted {
		if err := s.deductLocked(recomputed); err != nil {
			return nil, err
		}
	}

	sale.Items = recomputed
	sale.TotalCents = total
	sale.AmountPaidCents = total - sale.DiscountCents
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}
	if sale.OrderStatus == "" {
		if sale.OrderType == domain.OrderTypeInPerson {
			sale.OrderStatus = domain.StatusCompleted
		} else {
			sale.OrderStatus = domain.StatusPendingPayment
		}
	}
	if sale.PaymentStatus == "" {
		if sale.StockDeducted {
			sale.PaymentStatus = domain.PaymentStatusVerified
		} else {
			sale.PaymentStatus = domain.PaymentStatusPending
		}
	}

	stored := sale
	s.salesByID[sale.ID] = &stored
	created := cloneSale(stored)
	return &created, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(*sale)
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context, status domain.OrderStatus, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.Sale, 0, limit)
	for _, sale := range s.salesByID {
		if status != "" && sale.OrderStatus != status {
			continue
		}
		result = append(result, cloneSale(*sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.SaleDate.Equal(b.SaleDate) {
			return cmpString(b.ID, a.ID)
		}
		if a.SaleDate.After(b.SaleDate) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) VerifyPayment(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.OrderStatus != domain.StatusPendingPayment {
		return nil, store.ErrInvalidTransition
	}

	if !sale.StockDeducted {
		if err := s.deductLocked(sale.Items); err != nil {
			return nil, err
		}
		sale.StockDeducted = true
	}
	sale.PaymentStatus = domain.PaymentStatusVerified
	sale.OrderStatus = domain.StatusProcessing

	copied := cloneSale(*sale)
	return &copied, nil
}

func (s *Store) UpdateSaleStatus(_ context.Context, saleID string, next domain.OrderStatus) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	// Cancellation and payment verification carry stock side effects and
	// have dedicated entry points.
	if next == domain.StatusCancelled || next == domain.StatusProcessing {
		return nil, store.ErrInvalidTransition
	}
	if !domain.CanTransition(sale.OrderStatus, next) {
		return nil, store.ErrInvalidTransition
	}

	sale.OrderStatus = next
	copied := cloneSale(*sale)
	return &copied, nil
}

func (s *Store) CancelSale(_ context.Context, saleID string, reason string, cancellable map[domain.OrderStatus]bool) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !domain.CanTransition(sale.OrderStatus, domain.StatusCancelled) {
		return nil, store.ErrInvalidTransition
	}
	if !cancellable[sale.OrderStatus] {
		return nil, store.ErrInvalidTransition
	}

	now := time.Now().UTC()
	if sale.StockDeducted {
		s.returnLocked(sale.ID, sale.Items, now)
		sale.StockDeducted = false
	}
	sale.OrderStatus = domain.StatusCancelled
	sale.CancelReason = reason
	sale.CancelledAt = &now

	copied := cloneSale(*sale)
	return &copied, nil
}

func (s *Store) GetDailySalesReport(_ context.Context, from time.Time, to time.Time) (domain.DailySalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailySalesReport{}
	byType := map[string]*domain.DailySalesByType{}
	for _, sale := range s.salesByID {
		if sale.OrderStatus == domain.StatusCancelled {
			continue
		}
		if sale.SaleDate.Before(from) || !sale.SaleDate.Before(to) {
			continue
		}
		report.Orders++
		report.GrossCents += sale.TotalCents
		report.DiscountCents += sale.DiscountCents
		report.NetCents += sale.AmountPaidCents

		entry, ok := byType[sale.OrderType]
		if !ok {
			entry = &domain.DailySalesByType{OrderType: sale.OrderType}
			byType[sale.OrderType] = entry
		}
		entry.Orders++
		entry.TotalCents += sale.AmountPaidCents
	}

	report.ByType = make([]domain.DailySalesByType, 0, len(byType))
	for _, entry := range byType {
		report.ByType = append(report.ByType, *entry)
	}
	slices.SortFunc(report.ByType, func(a, b domain.DailySalesByType) int {
		return cmpString(a.OrderType, b.OrderType)
	})
	return report, nil
}

// --- Customers ---

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := customer
	return &copied, nil
}

func (s *Store) ListCustomers(_ context.Context, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.Customer, 0, len(s.customersByID))
	for _, customer := range s.customersByID {
		result = append(result, customer)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- Audit ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- Users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[user.Username]; exists {
		return store.ErrInvalidInput
	}
	user.Active = true
	s.usersByName[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, user := range s.usersByName {
		result = append(result, user)
	}
	slices.SortFunc(result, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return result, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	if username == "" || password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByName[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByName[username] = user
	return nil
}

// --- helpers ---

func cloneSale(sale domain.Sale) domain.Sale {
	copied := sale
	copied.Items = append([]domain.SaleItem(nil), sale.Items...)
	if sale.CancelledAt != nil {
		at := *sale.CancelledAt
		copied.CancelledAt = &at
	}
	return copied
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// compareBatchFEFO orders earliest expiry first, batches without expiry
// last, ties broken by receipt time.
func compareBatchFEFO(a domain.StockBatch, b domain.StockBatch) int {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
	case a.ExpiryDate == nil:
		return 1
	case b.ExpiryDate == nil:
		return -1
	case a.ExpiryDate.Before(*b.ExpiryDate):
		return -1
	case b.ExpiryDate.Before(*a.ExpiryDate):
		return 1
	}
	if a.ReceivedAt.Before(b.ReceivedAt) {
		return -1
	}
	if b.ReceivedAt.Before(a.ReceivedAt) {
		return 1
	}
	return 0
}

func eligibleBatchesLocked(batches []domain.StockBatch, today time.Time) []domain.StockBatch {
	eligible := make([]domain.StockBatch, 0, len(batches))
	for _, batch := range batches {
		if batch.Quantity < 1 {
			continue
		}
		if batch.ExpiryDate != nil && batch.ExpiryDate.Before(today) {
			continue
		}
		eligible = append(eligible, batch)
	}
	slices.SortFunc(eligible, compareBatchFEFO)
	return eligible
}

// eligibleIndexesFEFO returns indexes into batches in FEFO consumption order.
func eligibleIndexesFEFO(batches []domain.StockBatch, today time.Time) []int {
	idx := make([]int, 0, len(batches))
	for i, batch := range batches {
		if batch.Quantity < 1 {
			continue
		}
		if batch.ExpiryDate != nil && batch.ExpiryDate.Before(today) {
			continue
		}
		idx = append(idx, i)
	}
	slices.SortFunc(idx, func(a, b int) int {
		return compareBatchFEFO(batches[a], batches[b])
	})
	return idx
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
