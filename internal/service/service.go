package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"apotekku/backend/internal/cart"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	carts       cart.Store
	cancellable map[domain.OrderStatus]bool
}

func New(repo store.Repository, carts cart.Store, cancellable map[domain.OrderStatus]bool) *Service {
	if len(cancellable) == 0 {
		cancellable = map[domain.OrderStatus]bool{
			domain.StatusPendingPayment: true,
		}
	}

	return &Service{
		repo:        repo,
		carts:       carts,
		cancellable: cancellable,
	}
}

// --- Drugs ---

func (s *Service) ListDrugs(ctx context.Context, includeInactive bool) ([]domain.Drug, error) {
	if includeInactive {
		actor, ok := ActorFromContext(ctx)
		if !ok || actor.Role == domain.RoleCustomer {
			includeInactive = false
		}
	}
	return s.repo.ListDrugs(ctx, includeInactive)
}

func (s *Service) CreateDrug(ctx context.Context, req domain.DrugCreateRequest) (domain.Drug, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Drug{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Name == "" || req.Unit == "" {
		return domain.Drug{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateDrug(ctx, domain.Drug{
		Name:   req.Name,
		Brand:  strings.TrimSpace(req.Brand),
		Dosage: strings.TrimSpace(req.Dosage),
		Unit:   req.Unit,
		Active: true,
	})
	if err != nil {
		return domain.Drug{}, err
	}

	s.logAudit(ctx, "drug_create", "drug", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) UpdateDrug(ctx context.Context, id string, req domain.DrugUpdateRequest) (domain.Drug, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Drug{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetDrugByID(ctx, id)
	if err != nil {
		return domain.Drug{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Drug{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Brand != nil {
		updated.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Dosage != nil {
		updated.Dosage = strings.TrimSpace(*req.Dosage)
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Drug{}, store.ErrInvalidInput
		}
		updated.Unit = unit
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateDrug(ctx, updated)
	if err != nil {
		return domain.Drug{}, err
	}

	s.logAudit(ctx, "drug_update", "drug", saved.ID, fmt.Sprintf("name=%s,active=%t", saved.Name, saved.Active))
	return *saved, nil
}

func (s *Service) GetDrug(ctx context.Context, id string) (domain.Drug, error) {
	drug, err := s.repo.GetDrugByID(ctx, id)
	if err != nil {
		return domain.Drug{}, err
	}
	return *drug, nil
}

func (s *Service) GetAvailability(ctx context.Context, drugID string) (domain.AvailabilityResponse, error) {
	available, err := s.repo.GetAvailableQuantity(ctx, drugID)
	if err != nil {
		return domain.AvailabilityResponse{}, err
	}
	return domain.AvailabilityResponse{DrugID: drugID, Available: available}, nil
}

// --- Stock intake ---

func (s *Service) ReceiveStockBatch(ctx context.Context, req domain.StockIntakeRequest) (domain.StockBatch, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role == domain.RoleCustomer {
		return domain.StockBatch{}, fmt.Errorf("staff role required")
	}

	req.DrugID = strings.TrimSpace(req.DrugID)
	if req.DrugID == "" || req.Quantity < 1 || req.SellingPriceCents < 1 || req.PurchasePriceCents < 0 {
		return domain.StockBatch{}, store.ErrInvalidInput
	}

	var expiry *time.Time
	if strings.TrimSpace(req.ExpiryDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return domain.StockBatch{}, store.ErrInvalidInput
		}
		expiry = &parsed
	}

	created, err := s.repo.CreateStockBatch(ctx, domain.StockBatch{
		DrugID:             req.DrugID,
		BatchNumber:        strings.TrimSpace(req.BatchNumber),
		Quantity:           req.Quantity,
		PurchasePriceCents: req.PurchasePriceCents,
		SellingPriceCents:  req.SellingPriceCents,
		ExpiryDate:         expiry,
		Location:           strings.TrimSpace(req.Location),
		Supplier:           strings.TrimSpace(req.Supplier),
		SourceType:         domain.BatchSourceIntake,
		ReceivedAt:         time.Now().UTC(),
	})
	if err != nil {
		return domain.StockBatch{}, err
	}

	s.logAudit(ctx, "stock_intake", "batch", created.ID, fmt.Sprintf("drug=%s,qty=%d", created.DrugID, created.Quantity))
	return *created, nil
}

func (s *Service) ListStockBatches(ctx context.Context, drugID string, includeExpired bool, limit int) (domain.StockBatchListResponse, error) {
	batches, err := s.repo.ListStockBatches(ctx, strings.TrimSpace(drugID), includeExpired, limit)
	if err != nil {
		return domain.StockBatchListResponse{}, err
	}
	return domain.StockBatchListResponse{Batches: batches}, nil
}

// --- Session cart ---

func (s *Service) GetCart(ctx context.Context, sessionID string) (domain.CartSnapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.CartSnapshot{}, store.ErrInvalidInput
	}

	current, found, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if !found {
		return domain.CartSnapshot{SessionID: sessionID, Items: []domain.CartItem{}}, nil
	}
	return snapshotOf(*current), nil
}

func (s *Service) AddToCart(ctx context.Context, sessionID string, req domain.CartAddRequest) (domain.CartSnapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	req.DrugID = strings.TrimSpace(req.DrugID)
	if sessionID == "" || req.DrugID == "" || req.Quantity < 1 {
		return domain.CartSnapshot{}, store.ErrInvalidInput
	}

	current, found, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	working := domain.Cart{SessionID: sessionID}
	if found {
		working = *current
	}

	idx := -1
	for i, item := range working.Items {
		if item.DrugID == req.DrugID {
			idx = i
			break
		}
	}
	requested := req.Quantity
	if idx >= 0 {
		requested += working.Items[idx].Quantity
	}

	available, err := s.repo.GetAvailableQuantity(ctx, req.DrugID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if requested > available {
		return domain.CartSnapshot{}, store.ErrInsufficientStock
	}

	if idx >= 0 {
		working.Items[idx].Quantity = requested
	} else {
		working.Items = append(working.Items, domain.CartItem{DrugID: req.DrugID, Quantity: requested})
	}

	if err := s.refreshCart(ctx, &working); err != nil {
		return domain.CartSnapshot{}, err
	}
	if err := s.carts.Save(ctx, working); err != nil {
		return domain.CartSnapshot{}, err
	}
	return snapshotOf(working), nil
}

func (s *Service) UpdateCartItem(ctx context.Context, sessionID string, drugID string, req domain.CartUpdateRequest) (domain.CartSnapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	drugID = strings.TrimSpace(drugID)
	if sessionID == "" || drugID == "" {
		return domain.CartSnapshot{}, store.ErrInvalidInput
	}

	current, found, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if !found {
		return domain.CartSnapshot{}, store.ErrNotFound
	}
	working := *current

	idx := -1
	for i, item := range working.Items {
		if item.DrugID == drugID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.CartSnapshot{}, store.ErrNotFound
	}

	// Zero or negative quantity removes the line rather than erroring;
	// storefronts use this as the single "set quantity" call.
	if req.Quantity < 1 {
		working.Items = append(working.Items[:idx], working.Items[idx+1:]...)
	} else {
		available, err := s.repo.GetAvailableQuantity(ctx, drugID)
		if err != nil {
			return domain.CartSnapshot{}, err
		}
		if req.Quantity > available {
			return domain.CartSnapshot{}, store.ErrInsufficientStock
		}
		working.Items[idx].Quantity = req.Quantity
	}

	if err := s.refreshCart(ctx, &working); err != nil {
		return domain.CartSnapshot{}, err
	}
	if err := s.carts.Save(ctx, working); err != nil {
		return domain.CartSnapshot{}, err
	}
	return snapshotOf(working), nil
}

// RemoveCartItem is idempotent: removing a line that is not in the cart,
// or removing from a session with no cart, returns the current snapshot
// rather than an error.
func (s *Service) RemoveCartItem(ctx context.Context, sessionID string, drugID string) (domain.CartSnapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	drugID = strings.TrimSpace(drugID)
	if sessionID == "" || drugID == "" {
		return domain.CartSnapshot{}, store.ErrInvalidInput
	}

	current, found, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if !found {
		return domain.CartSnapshot{SessionID: sessionID, Items: []domain.CartItem{}}, nil
	}
	working := *current

	idx := -1
	for i, item := range working.Items {
		if item.DrugID == drugID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return snapshotOf(working), nil
	}
	working.Items = append(working.Items[:idx], working.Items[idx+1:]...)

	if err := s.refreshCart(ctx, &working); err != nil {
		return domain.CartSnapshot{}, err
	}
	if err := s.carts.Save(ctx, working); err != nil {
		return domain.CartSnapshot{}, err
	}
	return snapshotOf(working), nil
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return store.ErrInvalidInput
	}
	return s.carts.Delete(ctx, sessionID)
}

// refreshCart re-reads drug names and FEFO-head prices so the stored cart
// never serves stale snapshots. Lines whose drug has been deactivated are
// dropped.
func (s *Service) refreshCart(ctx context.Context, working *domain.Cart) error {
	ids := make([]string, 0, len(working.Items))
	for _, item := range working.Items {
		ids = append(ids, item.DrugID)
	}
	if len(ids) == 0 {
		return nil
	}

	drugs, err := s.repo.GetDrugsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	prices, err := s.repo.GetSellingPrices(ctx, ids)
	if err != nil {
		return err
	}

	kept := working.Items[:0]
	for _, item := range working.Items {
		drug, exists := drugs[item.DrugID]
		if !exists {
			continue
		}
		item.DrugName = drug.Name
		if price, ok := prices[item.DrugID]; ok {
			item.PriceCents = price
		}
		kept = append(kept, item)
	}
	working.Items = kept
	return nil
}

func snapshotOf(c domain.Cart) domain.CartSnapshot {
	items := append([]domain.CartItem(nil), c.Items...)
	if items == nil {
		items = []domain.CartItem{}
	}
	return domain.CartSnapshot{
		SessionID:  c.SessionID,
		Items:      items,
		TotalCents: c.TotalCents(),
	}
}

// --- Checkout ---

// POSCheckout finalizes an in-person sale: stock is deducted immediately
// and the sale is born completed with payment verified.
func (s *Service) POSCheckout(ctx context.Context, sessionID string, req domain.POSCheckoutRequest) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role == domain.RoleCustomer {
		return domain.SaleResponse{}, fmt.Errorf("staff role required")
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return domain.SaleResponse{}, store.ErrInvalidOrder
	}
	if req.DiscountCents < 0 {
		return domain.SaleResponse{}, store.ErrInvalidDiscount
	}

	current, found, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if !found || len(current.Items) == 0 {
		return domain.SaleResponse{}, store.ErrEmptyCart
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		CustomerID:    strings.TrimSpace(req.CustomerID),
		StaffUsername: actor.Username,
		OrderType:     domain.OrderTypeInPerson,
		OrderStatus:   domain.StatusCompleted,
		PaymentStatus: domain.PaymentStatusVerified,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		DiscountCents: req.DiscountCents,
		StockDeducted: true,
		Notes:         strings.TrimSpace(req.Notes),
		Items:         saleItemsFromCart(current.Items),
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if err := s.carts.Delete(ctx, sessionID); err != nil {
		log.Printf("[service] WARN: failed to clear cart session=%s after checkout: %v", sessionID, err)
	}

	s.logAudit(ctx, "pos_checkout", "sale", created.ID, fmt.Sprintf("total=%d,paid=%d", created.TotalCents, created.AmountPaidCents))
	return domain.SaleResponse{Sale: *created}, nil
}

// PlaceOnlineOrder creates a pickup or delivery order. No stock moves
// here: deduction is deferred until a staff member verifies payment.
func (s *Service) PlaceOnlineOrder(ctx context.Context, sessionID string, req domain.OnlineOrderRequest) (domain.SaleResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}
	if req.OrderType != domain.OrderTypePickup && req.OrderType != domain.OrderTypeDelivery {
		return domain.SaleResponse{}, store.ErrInvalidOrder
	}
	if req.OrderType == domain.OrderTypeDelivery && strings.TrimSpace(req.DeliveryAddress) == "" {
		return domain.SaleResponse{}, store.ErrInvalidOrder
	}
	if req.DiscountCents < 0 {
		return domain.SaleResponse{}, store.ErrInvalidDiscount
	}

	current, found, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if !found || len(current.Items) == 0 {
		return domain.SaleResponse{}, store.ErrEmptyCart
	}
	working := *current
	if err := s.refreshCart(ctx, &working); err != nil {
		return domain.SaleResponse{}, err
	}
	if len(working.Items) == 0 {
		return domain.SaleResponse{}, store.ErrEmptyCart
	}

	var staffUsername string
	if actor, ok := ActorFromContext(ctx); ok && actor.Role != domain.RoleCustomer {
		staffUsername = actor.Username
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		CustomerID:        strings.TrimSpace(req.CustomerID),
		StaffUsername:     staffUsername,
		OrderType:         req.OrderType,
		OrderStatus:       domain.StatusPendingPayment,
		PaymentStatus:     domain.PaymentStatusPending,
		DiscountCents:     req.DiscountCents,
		ProofOfPaymentRef: strings.TrimSpace(req.ProofOfPaymentRef),
		DeliveryAddress:   strings.TrimSpace(req.DeliveryAddress),
		StockDeducted:     false,
		Notes:             strings.TrimSpace(req.Notes),
		Items:             saleItemsFromCartWithPrices(working.Items),
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if err := s.carts.Delete(ctx, sessionID); err != nil {
		log.Printf("[service] WARN: failed to clear cart session=%s after order: %v", sessionID, err)
	}

	s.logAudit(ctx, "online_order_create", "sale", created.ID, fmt.Sprintf("type=%s,total=%d", created.OrderType, created.TotalCents))
	return domain.SaleResponse{Sale: *created}, nil
}

// --- Order lifecycle ---

func (s *Service) VerifyPayment(ctx context.Context, saleID string) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role == domain.RoleCustomer {
		return domain.SaleResponse{}, fmt.Errorf("staff role required")
	}

	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}

	updated, err := s.repo.VerifyPayment(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "payment_verify", "sale", updated.ID, fmt.Sprintf("status=%s", updated.OrderStatus))
	return domain.SaleResponse{Sale: *updated}, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, saleID string, req domain.StatusUpdateRequest) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role == domain.RoleCustomer {
		return domain.SaleResponse{}, fmt.Errorf("staff role required")
	}

	saleID = strings.TrimSpace(saleID)
	next, valid := domain.ParseOrderStatus(strings.TrimSpace(req.Status))
	if saleID == "" || !valid {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateSaleStatus(ctx, saleID, next)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "order_status_update", "sale", updated.ID, fmt.Sprintf("status=%s", updated.OrderStatus))
	return domain.SaleResponse{Sale: *updated}, nil
}

func (s *Service) CancelOrder(ctx context.Context, saleID string, reason string) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role == domain.RoleCustomer {
		return domain.SaleResponse{}, fmt.Errorf("staff role required")
	}

	saleID = strings.TrimSpace(saleID)
	reason = strings.TrimSpace(reason)
	if saleID == "" || reason == "" {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}

	updated, err := s.repo.CancelSale(ctx, saleID, reason, s.cancellable)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "order_cancel", "sale", updated.ID, fmt.Sprintf("reason=%s", reason))
	return domain.SaleResponse{Sale: *updated}, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.SaleResponse, error) {
	sale, err := s.repo.GetSaleByID(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{Sale: *sale}, nil
}

func (s *Service) ListSales(ctx context.Context, statusFilter string, limit int) (domain.SaleListResponse, error) {
	var status domain.OrderStatus
	if raw := strings.TrimSpace(statusFilter); raw != "" {
		parsed, valid := domain.ParseOrderStatus(raw)
		if !valid {
			return domain.SaleListResponse{}, store.ErrInvalidInput
		}
		status = parsed
	}

	sales, err := s.repo.ListSales(ctx, status, limit)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

// --- Reports ---

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailySalesReport, error) {
	day, err := parseReportDate(date)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	report, err := s.repo.GetDailySalesReport(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return domain.DailySalesReport{}, err
	}
	report.Date = day.Format("2006-01-02")
	return report, nil
}

func (s *Service) ExpiringBatches(ctx context.Context, withinDays int, limit int) (domain.ExpiringBatchReport, error) {
	if withinDays < 1 {
		withinDays = 30
	}

	before := time.Now().UTC().AddDate(0, 0, withinDays)
	batches, err := s.repo.ListExpiringBatches(ctx, before, limit)
	if err != nil {
		return domain.ExpiringBatchReport{}, err
	}
	if batches == nil {
		batches = []domain.StockBatch{}
	}
	return domain.ExpiringBatchReport{WithinDays: withinDays, Batches: batches}, nil
}

func (s *Service) LowStock(ctx context.Context, threshold int) (domain.LowStockReport, error) {
	if threshold < 1 {
		threshold = 10
	}

	drugs, err := s.repo.ListDrugs(ctx, false)
	if err != nil {
		return domain.LowStockReport{}, err
	}
	ids := make([]string, 0, len(drugs))
	for _, d := range drugs {
		ids = append(ids, d.ID)
	}
	available, err := s.repo.GetAvailableQuantities(ctx, ids)
	if err != nil {
		return domain.LowStockReport{}, err
	}

	entries := make([]domain.LowStockEntry, 0, 16)
	for _, d := range drugs {
		if available[d.ID] <= threshold {
			entries = append(entries, domain.LowStockEntry{
				DrugID:    d.ID,
				Name:      d.Name,
				Available: available[d.ID],
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Available != entries[j].Available {
			return entries[i].Available < entries[j].Available
		}
		return entries[i].Name < entries[j].Name
	})
	return domain.LowStockReport{Threshold: threshold, Entries: entries}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	day, err := parseReportDate(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, day, day.Add(24*time.Hour), limit)
}

// --- Customers ---

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, limit)
}

// --- helpers ---

func saleItemsFromCart(items []domain.CartItem) []domain.SaleItem {
	result := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		result = append(result, domain.SaleItem{
			DrugID:   item.DrugID,
			Quantity: item.Quantity,
		})
	}
	return result
}

func saleItemsFromCartWithPrices(items []domain.CartItem) []domain.SaleItem {
	result := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		result = append(result, domain.SaleItem{
			DrugID:         item.DrugID,
			DrugName:       item.DrugName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.PriceCents,
		})
	}
	return result
}

func parseReportDate(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, store.ErrInvalidInput
	}
	return day, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
