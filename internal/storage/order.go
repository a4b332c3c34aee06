package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/storefront/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrder сохраняет заказ вместе с позициями одной транзакцией и
	// возвращает заказ с присвоенными БД идентификаторами и метками времени.
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// DeleteOrder жёстко удаляет заказ целиком (позиции уходят каскадом).
	// Используется только как компенсация при неудачном списании остатков.
	DeleteOrder(ctx context.Context, orderID int64) error
	// GetOrdersByUserID возвращает заказы пользователя с позициями, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (order_no, user_id, payment_method, items_price_cents, discount_cents, total_cents,
		                     ship_street, ship_city, ship_zip, ship_country, paid, paid_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 RETURNING id, created_at`,
		order.OrderNo, order.UserID, order.PaymentMethod,
		order.ItemsPriceCents, order.DiscountCents, order.TotalCents,
		order.ShippingAddress.Street, order.ShippingAddress.City,
		order.ShippingAddress.Zip, order.ShippingAddress.Country,
		order.Paid, order.PaidAt,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, variant_id, name, unit_price_cents, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			item.OrderID, item.ProductID, item.VariantID, item.Name, item.UnitPriceCents, item.Quantity,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) DeleteOrder(ctx context.Context, orderID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := `
		SELECT id, order_no, user_id, payment_method, items_price_cents, discount_cents, total_cents,
		       ship_street, ship_city, ship_zip, ship_country, paid, paid_at, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	byID := make(map[int64]*models.Order)
	var ids []int64
	for rows.Next() {
		o := &models.Order{}
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.PaymentMethod,
			&o.ItemsPriceCents, &o.DiscountCents, &o.TotalCents,
			&o.ShippingAddress.Street, &o.ShippingAddress.City,
			&o.ShippingAddress.Zip, &o.ShippingAddress.Country,
			&o.Paid, &o.PaidAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	// Позиции всех заказов одним запросом, затем раскладываем по заказам
	itemRows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, variant_id, name, unit_price_cents, quantity
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		item := models.OrderItem{}
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.Name, &item.UnitPriceCents, &item.Quantity); err != nil {
			return nil, err
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
