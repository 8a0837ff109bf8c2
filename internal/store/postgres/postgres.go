package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Drugs ---

func (s *Store) ListDrugs(ctx context.Context, includeInactive bool) ([]domain.Drug, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, brand, dosage, unit, active
		FROM drugs
		WHERE active = true OR $1
		ORDER BY name ASC
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drugs := make([]domain.Drug, 0, 128)
	for rows.Next() {
		var d domain.Drug
		if err := rows.Scan(&d.ID, &d.Name, &d.Brand, &d.Dosage, &d.Unit, &d.Active); err != nil {
			return nil, err
		}
		drugs = append(drugs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drugs, nil
}

func (s *Store) CreateDrug(ctx context.Context, drug domain.Drug) (*domain.Drug, error) {
	if drug.Name == "" || drug.Unit == "" {
		return nil, store.ErrInvalidInput
	}
	if drug.ID == "" {
		drug.ID = xid.New("drug")
	}

	drug.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drugs (id, name, brand, dosage, unit, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, drug.ID, drug.Name, drug.Brand, drug.Dosage, drug.Unit, drug.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := drug
	return &created, nil
}

func (s *Store) GetDrugByID(ctx context.Context, id string) (*domain.Drug, error) {
	var drug domain.Drug
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, brand, dosage, unit, active
		FROM drugs
		WHERE id = $1
	`, id).Scan(&drug.ID, &drug.Name, &drug.Brand, &drug.Dosage, &drug.Unit, &drug.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &drug, nil
}

func (s *Store) UpdateDrug(ctx context.Context, drug domain.Drug) (*domain.Drug, error) {
	if drug.Name == "" || drug.Unit == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE drugs
		SET name = $2, brand = $3, dosage = $4, unit = $5, active = $6, updated_at = now()
		WHERE id = $1
	`, drug.ID, drug.Name, drug.Brand, drug.Dosage, drug.Unit, drug.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := drug
	return &updated, nil
}

func (s *Store) GetDrugsByIDs(ctx context.Context, ids []string) (map[string]domain.Drug, error) {
	result := make(map[string]domain.Drug, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, brand, dosage, unit, active
		FROM drugs
		WHERE active = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.Drug
		if err := rows.Scan(&d.ID, &d.Name, &d.Brand, &d.Dosage, &d.Unit, &d.Active); err != nil {
			return nil, err
		}
		result[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- Stock ledger ---

func (s *Store) CreateStockBatch(ctx context.Context, batch domain.StockBatch) (*domain.StockBatch, error) {
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

	if _, err := s.GetDrugByID(ctx, batch.DrugID); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_batches (
			id, drug_id, batch_number, quantity, purchase_price_cents, selling_price_cents,
			expiry_date, location, supplier, source_type, source_id, received_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
	`, batch.ID, batch.DrugID, batch.BatchNumber, batch.Quantity, batch.PurchasePriceCents,
		batch.SellingPriceCents, nullTime(batch.ExpiryDate), batch.Location, batch.Supplier,
		batch.SourceType, nullIfEmpty(batch.SourceID), batch.ReceivedAt)
	if err != nil {
		return nil, err
	}

	created := batch
	return &created, nil
}

func (s *Store) ListStockBatches(ctx context.Context, drugID string, includeExpired bool, limit int) ([]domain.StockBatch, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, drug_id, batch_number, quantity, purchase_price_cents, selling_price_cents,
		       expiry_date, location, supplier, source_type, source_id, received_at
		FROM stock_batches
		WHERE ($1 = '' OR drug_id = $1)
		  AND ($2 OR expiry_date IS NULL OR expiry_date >= CURRENT_DATE)
		ORDER BY expiry_date ASC NULLS LAST, received_at ASC
		LIMIT $3
	`, drugID, includeExpired, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.StockBatch, 0, limit)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Store) GetAvailableQuantity(ctx context.Context, drugID string) (int, error) {
	if _, err := s.GetDrugByID(ctx, drugID); err != nil {
		return 0, err
	}

	var available int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_batches
		WHERE drug_id = $1 AND quantity > 0
		  AND (expiry_date IS NULL OR expiry_date >= CURRENT_DATE)
	`, drugID).Scan(&available)
	if err != nil {
		return 0, err
	}
	return available, nil
}

func (s *Store) GetAvailableQuantities(ctx context.Context, drugIDs []string) (map[string]int, error) {
	result := make(map[string]int, len(drugIDs))
	if len(drugIDs) == 0 {
		return result, nil
	}
	for _, id := range drugIDs {
		result[id] = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_id, COALESCE(SUM(quantity), 0)
		FROM stock_batches
		WHERE drug_id = ANY($1) AND quantity > 0
		  AND (expiry_date IS NULL OR expiry_date >= CURRENT_DATE)
		GROUP BY drug_id
	`, drugIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var drugID string
		var available int
		if err := rows.Scan(&drugID, &available); err != nil {
			return nil, err
		}
		result[drugID] = available
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetSellingPrices(ctx context.Context, drugIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(drugIDs))
	if len(drugIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (drug_id) drug_id, selling_price_cents
		FROM stock_batches
		WHERE drug_id = ANY($1) AND quantity > 0
		  AND (expiry_date IS NULL OR expiry_date >= CURRENT_DATE)
		ORDER BY drug_id, expiry_date ASC NULLS LAST, received_at ASC
	`, drugIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var drugID string
		var price int64
		if err := rows.Scan(&drugID, &price); err != nil {
			return nil, err
		}
		result[drugID] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListExpiringBatches(ctx context.Context, before time.Time, limit int) ([]domain.StockBatch, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, drug_id, batch_number, quantity, purchase_price_cents, selling_price_cents,
		       expiry_date, location, supplier, source_type, source_id, received_at
		FROM stock_batches
		WHERE quantity > 0 AND expiry_date IS NOT NULL AND expiry_date < $1
		ORDER BY expiry_date ASC, received_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.StockBatch, 0, limit)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

// consumeBatches locks a drug's open batches in FEFO order and deducts qty
// across them. It returns the selling price of the batch at the head of the
// queue, which is the authoritative price for a deduction made now.
func consumeBatches(ctx context.Context, pgTx *sql.Tx, drugID string, qty int) (int64, error) {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, expiry_date, quantity, selling_price_cents
		FROM stock_batches
		WHERE drug_id = $1 AND quantity > 0
		ORDER BY expiry_date ASC NULLS LAST, received_at ASC
		FOR UPDATE
	`, drugID)
	if err != nil {
		return 0, err
	}

	type batchState struct {
		id        string
		expiry    *time.Time
		available int
		price     int64
	}
	today := nowDateUTC(time.Now().UTC())
	batches := make([]batchState, 0, 8)
	for rows.Next() {
		var id string
		var expiry sql.NullTime
		var available int
		var price int64
		if err := rows.Scan(&id, &expiry, &available, &price); err != nil {
			_ = rows.Close()
			return 0, err
		}
		var expiryDate *time.Time
		if expiry.Valid {
			e := nowDateUTC(expiry.Time.UTC())
			expiryDate = &e
		}
		batches = append(batches, batchState{id: id, expiry: expiryDate, available: available, price: price})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	available := 0
	headPrice := int64(0)
	for _, batch := range batches {
		if batch.expiry != nil && batch.expiry.Before(today) {
			continue
		}
		if headPrice == 0 {
			headPrice = batch.price
		}
		available += batch.available
	}
	if available < qty {
		return 0, store.ErrInsufficientStock
	}

	remaining := qty
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		if batch.expiry != nil && batch.expiry.Before(today) {
			continue
		}
		used := remaining
		if used > batch.available {
			used = batch.available
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE stock_batches
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2
		`, used, batch.id)
		if err != nil {
			return 0, err
		}
		remaining -= used
	}
	if remaining > 0 {
		return 0, store.ErrInsufficientStock
	}
	return headPrice, nil
}

// --- Sales ---

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}
	if !domain.ValidOrderType(sale.OrderType) {
		return nil, store.ErrInvalidOrder
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := uniqueDrugIDs(sale.Items)
	if len(ids) == 0 {
		return nil, store.ErrInvalidInput
	}

	drugRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name
		FROM drugs
		WHERE active = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	drugNames := make(map[string]string, len(ids))
	for drugRows.Next() {
		var id, name string
		if err := drugRows.Scan(&id, &name); err != nil {
			_ = drugRows.Close()
			return nil, err
		}
		drugNames[id] = name
	}
	if err := drugRows.Err(); err != nil {
		_ = drugRows.Close()
		return nil, err
	}
	_ = drugRows.Close()

	total := int64(0)
	recomputed := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		name, exists := drugNames[item.DrugID]
		if !exists {
			return nil, fmt.Errorf("drug %s unavailable", item.DrugID)
		}

		unitPrice := item.UnitPriceCents
		if sale.StockDeducted {
			headPrice, err := consumeBatches(ctx, pgTx, item.DrugID, item.Quantity)
			if err != nil {
				return nil, err
			}
			unitPrice = headPrice
		}
		if unitPrice < 1 {
			return nil, store.ErrInvalidInput
		}

		subtotal := unitPrice * int64(item.Quantity)
		recomputed = append(recomputed, domain.SaleItem{
			DrugID:         item.DrugID,
			DrugName:       name,
			Quantity:       item.Quantity,
			UnitPriceCents: unitPrice,
			SubtotalCents:  subtotal,
		})
		total += subtotal
	}

	if sale.DiscountCents < 0 || sale.DiscountCents > total {
		return nil, store.ErrInvalidDiscount
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

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, customer_id, staff_username, order_type, order_status, payment_status,
			payment_method, total_cents, discount_cents, amount_paid_cents,
			proof_of_payment_ref, delivery_address, stock_deducted, notes,
			cancel_reason, cancelled_at, sale_date
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, sale.ID, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.StaffUsername), sale.OrderType,
		string(sale.OrderStatus), sale.PaymentStatus, nullIfEmpty(sale.PaymentMethod),
		sale.TotalCents, sale.DiscountCents, sale.AmountPaidCents,
		nullIfEmpty(sale.ProofOfPaymentRef), nullIfEmpty(sale.DeliveryAddress),
		sale.StockDeducted, nullIfEmpty(sale.Notes), nullIfEmpty(sale.CancelReason),
		nullTime(sale.CancelledAt), sale.SaleDate)
	if err != nil {
		return nil, err
	}

	for _, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, drug_id, drug_name, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, item.DrugID, item.DrugName, item.Quantity, item.UnitPriceCents, item.SubtotalCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSaleRow(s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, staff_username, order_type, order_status, payment_status,
		       payment_method, total_cents, discount_cents, amount_paid_cents,
		       proof_of_payment_ref, delivery_address, stock_deducted, notes,
		       cancel_reason, cancelled_at, sale_date
		FROM sales
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	items, err := s.loadSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, staff_username, order_type, order_status, payment_status,
		       payment_method, total_cents, discount_cents, amount_paid_cents,
		       proof_of_payment_ref, delivery_address, stock_deducted, notes,
		       cancel_reason, cancelled_at, sale_date
		FROM sales
		WHERE ($1 = '' OR order_status = $1)
		ORDER BY sale_date DESC, id DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSaleRow(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.loadSaleItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

func (s *Store) VerifyPayment(ctx context.Context, saleID string) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	var deducted bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT order_status, stock_deducted
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&status, &deducted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if domain.OrderStatus(status) != domain.StatusPendingPayment {
		return nil, store.ErrInvalidTransition
	}

	if !deducted {
		items, err := loadSaleItemsTx(ctx, pgTx, saleID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if _, err := consumeBatches(ctx, pgTx, item.DrugID, item.Quantity); err != nil {
				return nil, err
			}
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET order_status = $2, payment_status = $3, stock_deducted = true
		WHERE id = $1
	`, saleID, string(domain.StatusProcessing), domain.PaymentStatusVerified)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) UpdateSaleStatus(ctx context.Context, saleID string, next domain.OrderStatus) (*domain.Sale, error) {
	// Cancellation and payment verification carry stock side effects and
	// have dedicated entry points.
	if next == domain.StatusCancelled || next == domain.StatusProcessing {
		return nil, store.ErrInvalidTransition
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	err = pgTx.QueryRowContext(ctx, `
		SELECT order_status
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if !domain.CanTransition(domain.OrderStatus(status), next) {
		return nil, store.ErrInvalidTransition
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET order_status = $2
		WHERE id = $1
	`, saleID, string(next))
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) CancelSale(ctx context.Context, saleID string, reason string, cancellable map[domain.OrderStatus]bool) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	var deducted bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT order_status, stock_deducted
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&status, &deducted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	current := domain.OrderStatus(status)
	if !domain.CanTransition(current, domain.StatusCancelled) {
		return nil, store.ErrInvalidTransition
	}
	if !cancellable[current] {
		return nil, store.ErrInvalidTransition
	}

	now := time.Now().UTC()
	if deducted {
		items, err := loadSaleItemsTx(ctx, pgTx, saleID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			_, err := pgTx.ExecContext(ctx, `
				INSERT INTO stock_batches (
					id, drug_id, batch_number, quantity, purchase_price_cents, selling_price_cents,
					expiry_date, location, supplier, source_type, source_id, received_at, updated_at
				)
				VALUES ($1,$2,$3,$4,$5,$6,NULL,'','',$7,$8,$9,now())
			`, xid.New("batch"), item.DrugID, "RET-"+saleID, item.Quantity,
				item.UnitPriceCents, item.UnitPriceCents, domain.BatchSourceReturn, saleID, now)
			if err != nil {
				return nil, err
			}
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET order_status = $2, stock_deducted = false, cancel_reason = $3, cancelled_at = $4
		WHERE id = $1
	`, saleID, string(domain.StatusCancelled), reason, now)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) GetDailySalesReport(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesReport, error) {
	report := domain.DailySalesReport{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cents), 0), COALESCE(SUM(discount_cents), 0),
		       COALESCE(SUM(amount_paid_cents), 0)
		FROM sales
		WHERE order_status <> $1 AND sale_date >= $2 AND sale_date < $3
	`, string(domain.StatusCancelled), from, to).Scan(
		&report.Orders, &report.GrossCents, &report.DiscountCents, &report.NetCents)
	if err != nil {
		return report, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_type, COUNT(*), COALESCE(SUM(amount_paid_cents), 0)
		FROM sales
		WHERE order_status <> $1 AND sale_date >= $2 AND sale_date < $3
		GROUP BY order_type
		ORDER BY order_type ASC
	`, string(domain.StatusCancelled), from, to)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.DailySalesByType
		if err := rows.Scan(&entry.OrderType, &entry.Orders, &entry.TotalCents); err != nil {
			return report, err
		}
		report.ByType = append(report.ByType, entry)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// --- Customers ---

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.Address, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, address, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Email,
		&customer.Address, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, address, created_at
		FROM customers
		ORDER BY name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Email,
			&customer.Address, &customer.CreatedAt); err != nil {
			return nil, err
		}
		customer.CreatedAt = customer.CreatedAt.UTC()
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

// --- Audit ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType,
		entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (domain.StockBatch, error) {
	var batch domain.StockBatch
	var expiry sql.NullTime
	var location, supplier, sourceID sql.NullString
	err := row.Scan(&batch.ID, &batch.DrugID, &batch.BatchNumber, &batch.Quantity,
		&batch.PurchasePriceCents, &batch.SellingPriceCents, &expiry,
		&location, &supplier, &batch.SourceType, &sourceID, &batch.ReceivedAt)
	if err != nil {
		return batch, err
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		batch.ExpiryDate = &e
	}
	batch.Location = location.String
	batch.Supplier = supplier.String
	batch.SourceID = sourceID.String
	batch.ReceivedAt = batch.ReceivedAt.UTC()
	return batch, nil
}

func scanSaleRow(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var status string
	var customerID, staffUsername, paymentMethod, proofRef, deliveryAddr, notes, cancelReason sql.NullString
	var cancelledAt sql.NullTime
	err := row.Scan(&sale.ID, &customerID, &staffUsername, &sale.OrderType, &status,
		&sale.PaymentStatus, &paymentMethod, &sale.TotalCents, &sale.DiscountCents,
		&sale.AmountPaidCents, &proofRef, &deliveryAddr, &sale.StockDeducted,
		&notes, &cancelReason, &cancelledAt, &sale.SaleDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.OrderStatus = domain.OrderStatus(status)
	sale.CustomerID = customerID.String
	sale.StaffUsername = staffUsername.String
	sale.PaymentMethod = paymentMethod.String
	sale.ProofOfPaymentRef = proofRef.String
	sale.DeliveryAddress = deliveryAddr.String
	sale.Notes = notes.String
	sale.CancelReason = cancelReason.String
	if cancelledAt.Valid {
		at := cancelledAt.Time.UTC()
		sale.CancelledAt = &at
	}
	sale.SaleDate = sale.SaleDate.UTC()
	return &sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_id, drug_name, quantity, unit_price_cents, subtotal_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY drug_id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.DrugID, &item.DrugName, &item.Quantity,
			&item.UnitPriceCents, &item.SubtotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func loadSaleItemsTx(ctx context.Context, pgTx *sql.Tx, saleID string) ([]domain.SaleItem, error) {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT drug_id, drug_name, quantity, unit_price_cents, subtotal_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY drug_id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.DrugID, &item.DrugName, &item.Quantity,
			&item.UnitPriceCents, &item.SubtotalCents); err != nil {
			_ = rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	return items, nil
}

func uniqueDrugIDs(items []domain.SaleItem) []string {
	if len(items) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.DrugID == "" {
			continue
		}
		set[item.DrugID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
