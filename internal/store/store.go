package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

var ErrNotFound = errors.New("not found")

func (s *Store) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.Pool.QueryRow(ctx, "SELECT nextval('order_number_seq')").Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("GRV-%06d", n), nil
}

func (s *Store) NextInvoiceNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.Pool.QueryRow(ctx, "SELECT nextval('invoice_number_seq')").Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%06d", n), nil
}

// ---- pending orders ----

func (s *Store) CreatePendingOrder(ctx context.Context, p *models.PendingOrder) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO pending_orders (
			id, user_id, payment_reference, items, street, city, phone,
			discount_minor, credits_minor, delivery_notes, amount_minor,
			status, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		p.ID,
		p.UserID,
		p.PaymentReference,
		items,
		p.Address.Street,
		p.Address.City,
		p.Address.Phone,
		p.DiscountMinor,
		p.CreditsMinor,
		p.DeliveryNotes,
		p.AmountMinor,
		p.Status,
		p.ExpiresAt,
	)
	return err
}

const pendingColumns = `
	id, user_id, payment_reference, items, street, city, phone,
	discount_minor, credits_minor, delivery_notes, amount_minor,
	status, expires_at, created_at, updated_at`

func (s *Store) GetPendingOrder(ctx context.Context, id string) (*models.PendingOrder, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_orders WHERE id=$1`, id)
	return scanPending(row)
}

func (s *Store) GetPendingByReference(ctx context.Context, reference string) (*models.PendingOrder, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_orders WHERE payment_reference=$1`, reference)
	return scanPending(row)
}

func scanPending(row pgx.Row) (*models.PendingOrder, error) {
	var p models.PendingOrder
	var items []byte
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PaymentReference,
		&items,
		&p.Address.Street,
		&p.Address.City,
		&p.Address.Phone,
		&p.DiscountMinor,
		&p.CreditsMinor,
		&p.DeliveryNotes,
		&p.AmountMinor,
		&p.Status,
		&p.ExpiresAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &p.Items); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePendingStatus transitions a pending order only when its current
// status is one of from. Returns rows affected so callers can detect a lost
// guard.
func (s *Store) UpdatePendingStatus(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE pending_orders
		SET status=$2, updated_at=now()
		WHERE id=$1 AND status = ANY($3)
	`, id, to, statusStrings(from))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// MarkExpired sweeps initialized pending orders past their expiry window.
// Idempotent with Confirm: an expired row can still be committed if the
// provider later verifies success.
func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE pending_orders
		SET status='expired', updated_at=now()
		WHERE status='initialized' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func statusStrings(in []models.PaymentStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// ---- orders ----

const orderColumns = `
	id, order_number, user_id, payment_reference, items, street, city, phone,
	subtotal_minor, discount_minor, credits_minor, total_minor, status,
	delivery_notes, invoice_number, invoice_pdf_url, invoice_image_url,
	cancel_reason, refund_due, created_at, updated_at`

// CommitOrder performs the exactly-once transition from pending intent to
// committed order. The insert carries ON CONFLICT (payment_reference) DO
// NOTHING: among concurrent callers for the same reference only one row
// lands, and losers read back the winner's order. The pending flip, audit
// upsert, stock decrement and outbox rows ride the same transaction.
func (s *Store) CommitOrder(ctx context.Context, order *models.Order, tx *models.PaymentTransaction) (*models.Order, bool, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, false, err
	}

	dbtx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer dbtx.Rollback(ctx)

	res, err := dbtx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, payment_reference, items,
			street, city, phone,
			subtotal_minor, discount_minor, credits_minor, total_minor,
			status, delivery_notes, invoice_number
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (payment_reference) DO NOTHING
	`,
		order.ID,
		order.OrderNumber,
		order.UserID,
		order.PaymentReference,
		items,
		order.Address.Street,
		order.Address.City,
		order.Address.Phone,
		order.Totals.SubtotalMinor,
		order.Totals.DiscountMinor,
		order.Totals.CreditsMinor,
		order.Totals.TotalMinor,
		order.Status,
		order.DeliveryNotes,
		order.InvoiceNumber,
	)
	if err != nil {
		return nil, false, err
	}

	if res.RowsAffected() == 0 {
		// Lost the race: somebody committed this reference first.
		existing, err := s.GetOrderByReference(ctx, order.PaymentReference)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if _, err := dbtx.Exec(ctx, `
		UPDATE pending_orders
		SET status='success', updated_at=now()
		WHERE payment_reference=$1
	`, order.PaymentReference); err != nil {
		return nil, false, err
	}

	if err := upsertTransaction(ctx, dbtx, tx); err != nil {
		return nil, false, err
	}

	for _, item := range order.Items {
		if _, err := dbtx.Exec(ctx, `
			UPDATE products
			SET stock = GREATEST(stock - $2, 0)
			WHERE id=$1
		`, item.ProductID, item.Quantity); err != nil {
			return nil, false, err
		}
	}

	for _, kind := range []models.OutboxKind{models.OutboxInvoice, models.OutboxNotify} {
		if _, err := dbtx.Exec(ctx, `
			INSERT INTO order_outbox (order_id, kind, status) VALUES ($1,$2,'pending')
		`, order.ID, kind); err != nil {
			return nil, false, err
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	return scanOrder(row)
}

func (s *Store) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference=$1`, reference)
	return scanOrder(row)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var items []byte
	var invPDF, invImg, reason sql.NullString
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.PaymentReference,
		&items,
		&o.Address.Street,
		&o.Address.City,
		&o.Address.Phone,
		&o.Totals.SubtotalMinor,
		&o.Totals.DiscountMinor,
		&o.Totals.CreditsMinor,
		&o.Totals.TotalMinor,
		&o.Status,
		&o.DeliveryNotes,
		&o.InvoiceNumber,
		&invPDF,
		&invImg,
		&reason,
		&o.RefundDue,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if invPDF.Valid {
		o.InvoicePDFURL = &invPDF.String
	}
	if invImg.Valid {
		o.InvoiceImageURL = &invImg.String
	}
	if reason.Valid {
		o.CancelReason = &reason.String
	}
	return &o, nil
}

// UpdateOrderStatus applies a fulfillment transition guarded by the allowed
// source statuses. Callers enforce CanTransition; the guard closes the
// concurrent-update window.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, reason *string, refundDue bool) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, cancel_reason=COALESCE($4, cancel_reason),
			refund_due = refund_due OR $5, updated_at=now()
		WHERE id=$1 AND status = ANY($3)
	`, id, to, orderStatusStrings(from), reason, refundDue)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (s *Store) SetInvoiceURLs(ctx context.Context, orderID, pdfURL, imageURL string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET invoice_pdf_url=$2, invoice_image_url=$3, updated_at=now()
		WHERE id=$1
	`, orderID, pdfURL, imageURL)
	return err
}

func orderStatusStrings(in []models.OrderStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// ---- payment transactions (audit) ----

func (s *Store) UpsertTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	return upsertTransaction(ctx, s.Pool, tx)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertTransaction(ctx context.Context, ex execer, tx *models.PaymentTransaction) error {
	_, err := ex.Exec(ctx, `
		INSERT INTO payment_transactions (reference, status, paid_at, raw_payload, flag, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (reference) DO UPDATE
		SET status=EXCLUDED.status, paid_at=EXCLUDED.paid_at,
			raw_payload=EXCLUDED.raw_payload, flag=EXCLUDED.flag, updated_at=now()
	`, tx.Reference, tx.Status, tx.PaidAt, tx.RawPayload, tx.Flag)
	return err
}

// ---- products ----

func (s *Store) GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, unit_price_minor, stock, active
		FROM products WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*models.Product, len(ids))
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPriceMinor, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

// ---- outbox ----

// ClaimOutbox atomically flips a batch of pending side-effect jobs to
// claimed and returns them. SKIP LOCKED keeps multiple worker instances
// from double-claiming; stale claims are requeued by the sweep.
func (s *Store) ClaimOutbox(ctx context.Context, limit int) ([]*models.OutboxEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE order_outbox
		SET status='claimed', updated_at=now()
		WHERE id IN (
			SELECT id FROM order_outbox
			WHERE status='pending'
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, order_id, kind, status, attempts, last_error, created_at, updated_at
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		var lastErr sql.NullString
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &e.Status, &e.Attempts, &lastErr, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			e.LastError = &lastErr.String
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *Store) CompleteOutbox(ctx context.Context, id int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE order_outbox SET status='done', updated_at=now() WHERE id=$1
	`, id)
	return err
}

// FailOutbox records a failed attempt; past maxAttempts the job is parked
// as failed for manual replay.
func (s *Store) FailOutbox(ctx context.Context, id int64, cause string, maxAttempts int) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE order_outbox
		SET attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
			updated_at = now()
		WHERE id=$1
	`, id, cause, maxAttempts)
	return err
}

// RequeueStaleOutbox returns claims older than age to pending, covering a
// worker that died between claim and completion.
func (s *Store) RequeueStaleOutbox(ctx context.Context, age time.Duration) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE order_outbox
		SET status='pending', updated_at=now()
		WHERE status='claimed' AND updated_at < now() - $1::interval
	`, fmt.Sprintf("%d seconds", int(age.Seconds())))
	return err
}
