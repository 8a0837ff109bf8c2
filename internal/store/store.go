package store

import (
	"context"
	"errors"
	"time"

	"apotekku/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidDiscount   = errors.New("invalid discount")
	ErrInvalidOrder      = errors.New("invalid order metadata")
	ErrInvalidInput      = errors.New("invalid input")
)

// Repository is the persistence boundary. Implementations must make every
// stock-affecting operation atomic: a sale, its items and any batch
// deduction or return commit together or not at all.
type Repository interface {
	ListDrugs(ctx context.Context, includeInactive bool) ([]domain.Drug, error)
	CreateDrug(ctx context.Context, drug domain.Drug) (*domain.Drug, error)
	GetDrugByID(ctx context.Context, id string) (*domain.Drug, error)
	UpdateDrug(ctx context.Context, drug domain.Drug) (*domain.Drug, error)
	GetDrugsByIDs(ctx context.Context, ids []string) (map[string]domain.Drug, error)

	CreateStockBatch(ctx context.Context, batch domain.StockBatch) (*domain.StockBatch, error)
	ListStockBatches(ctx context.Context, drugID string, includeExpired bool, limit int) ([]domain.StockBatch, error)
	// GetAvailableQuantity sums quantity over non-expired batches.
	GetAvailableQuantity(ctx context.Context, drugID string) (int, error)
	GetAvailableQuantities(ctx context.Context, drugIDs []string) (map[string]int, error)
	// GetSellingPrices returns, per drug, the selling price of the
	// earliest-expiring eligible batch (the batch FEFO would sell from).
	GetSellingPrices(ctx context.Context, drugIDs []string) (map[string]int64, error)
	ListExpiringBatches(ctx context.Context, before time.Time, limit int) ([]domain.StockBatch, error)

	// CreateSale persists the sale header and items. When
	// sale.StockDeducted is true (in-person flow) it also consumes batch
	// quantities FEFO inside the same transaction, failing the whole sale
	// with ErrInsufficientStock when any line cannot be covered.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Sale, error)
	// VerifyPayment moves a pending order to processing, deducting stock
	// for every item if not already deducted. The sale row is locked for
	// the duration so concurrent verifications cannot double-deduct.
	VerifyPayment(ctx context.Context, saleID string) (*domain.Sale, error)
	UpdateSaleStatus(ctx context.Context, saleID string, next domain.OrderStatus) (*domain.Sale, error)
	// CancelSale returns deducted stock (if any) and marks the sale
	// cancelled. The current status must be both transition-table legal
	// and a member of the cancellable policy set.
	CancelSale(ctx context.Context, saleID string, reason string, cancellable map[domain.OrderStatus]bool) (*domain.Sale, error)

	GetDailySalesReport(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesReport, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
