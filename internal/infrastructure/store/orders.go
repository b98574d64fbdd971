package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/wa-storefront/internal/domain/order"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStore persists orders and their items in PostgreSQL.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create inserts an order together with its items in one transaction.
func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	customerJSON, err := json.Marshal(o.CustomerInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal customer info: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID any
	if o.UserID != "" {
		userID = o.UserID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, customer_info, total, status, payment_method, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, userID, customerJSON, o.Total, o.Status, o.PaymentMethod, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price, product_name, variant_info)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, it.ProductID, it.Quantity, it.Price, it.ProductName, nullableJSON(it.VariantInfo),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// Get loads one order with its items.
func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	var (
		o            order.Order
		userID       sql.NullString
		customerJSON []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, customer_info, total, status, payment_method, created_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &userID, &customerJSON, &o.Total, &o.Status, &o.PaymentMethod, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	o.UserID = userID.String
	if err := json.Unmarshal(customerJSON, &o.CustomerInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer info: %w", err)
	}

	items, err := s.items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// ListByUser returns a user's orders, newest first, without items.
func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return s.list(ctx,
		`SELECT id, user_id, customer_info, total, status, payment_method, created_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAll returns every order, newest first, without items.
func (s *OrderStore) ListAll(ctx context.Context) ([]order.Order, error) {
	return s.list(ctx,
		`SELECT id, user_id, customer_info, total, status, payment_method, created_at
		 FROM orders ORDER BY created_at DESC`)
}

// UpdateStatus changes an order's status. Only admin action and payment
// webhooks go through here; orders are never deleted.
func (s *OrderStore) UpdateStatus(ctx context.Context, id, status string) error {
	if !order.ValidStatus(status) {
		return order.ErrInvalidStatus
	}

	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		var (
			o            order.Order
			userID       sql.NullString
			customerJSON []byte
		)
		if err := rows.Scan(&o.ID, &userID, &customerJSON, &o.Total, &o.Status, &o.PaymentMethod, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.UserID = userID.String
		if err := json.Unmarshal(customerJSON, &o.CustomerInfo); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *OrderStore) items(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, product_id, quantity, price, product_name, variant_info
		 FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var (
			it      order.Item
			variant []byte
		)
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.ProductName, &variant); err != nil {
			return nil, err
		}
		it.VariantInfo = variant
		items = append(items, it)
	}
	return items, rows.Err()
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
