package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/storefront/internal/domain/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
	// ErrInsufficientStock возвращается условным списанием, когда остатка не хватает
	// на запрошенное количество (в том числе при гонке двух оформлений).
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductStorage описывает методы каталога и учёта остатков.
type ProductStorage interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	// GetStock возвращает текущий остаток и название товара по паре (товар, вариант).
	GetStock(ctx context.Context, productID int64, variantID *int64) (int, string, error)
	// DecrementStock атомарно списывает qty единиц, если остатка достаточно.
	// Списание помечается номером заказа в журнале движений остатков.
	// Возвращает ErrInsufficientStock, если условие stock >= qty не выполнено.
	DecrementStock(ctx context.Context, productID int64, variantID *int64, qty int, orderNo string) error
	// IncrementStock возвращает qty единиц на склад (компенсация или пополнение админом).
	IncrementStock(ctx context.Context, productID int64, variantID *int64, qty int, orderNo string) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func (r *productRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT id, name, description, price_cents, stock, created_at FROM products ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p := &models.Product{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, price_cents, stock, created_at FROM products WHERE id = $1", id)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	// Подтягиваем варианты товара одним запросом
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, product_id, name, price_cents, stock FROM product_variants WHERE product_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		v := models.Variant{}
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.PriceCents, &v.Stock); err != nil {
			return nil, err
		}
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, description, price_cents, stock, created_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING id, created_at`,
		product.Name, product.Description, product.PriceCents, product.Stock,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	for i := range product.Variants {
		v := &product.Variants[i]
		v.ProductID = product.ID
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO product_variants (product_id, name, price_cents, stock)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			v.ProductID, v.Name, v.PriceCents, v.Stock,
		).Scan(&v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create variant: %w", err)
		}
	}
	return product, nil
}

func (r *productRepository) GetStock(ctx context.Context, productID int64, variantID *int64) (int, string, error) {
	var stock int
	var name string
	if variantID != nil {
		row := r.db.QueryRowContext(ctx,
			`SELECT v.stock, p.name
			 FROM product_variants v JOIN products p ON p.id = v.product_id
			 WHERE v.id = $1 AND v.product_id = $2`, *variantID, productID)
		if err := row.Scan(&stock, &name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, "", ErrVariantNotFound
			}
			return 0, "", err
		}
		return stock, name, nil
	}
	row := r.db.QueryRowContext(ctx, "SELECT stock, name FROM products WHERE id = $1", productID)
	if err := row.Scan(&stock, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrProductNotFound
		}
		return 0, "", err
	}
	return stock, name, nil
}

// DecrementStock выполняет условное списание одним UPDATE: строка меняется только если
// остатка достаточно, поэтому остаток не может уйти в минус даже при параллельных
// оформлениях одного товара. Чтение-потом-запись здесь недопустимо.
func (r *productRepository) DecrementStock(ctx context.Context, productID int64, variantID *int64, qty int, orderNo string) error {
	return r.applyStockDelta(ctx, productID, variantID, -qty, orderNo)
}

func (r *productRepository) IncrementStock(ctx context.Context, productID int64, variantID *int64, qty int, orderNo string) error {
	return r.applyStockDelta(ctx, productID, variantID, qty, orderNo)
}

func (r *productRepository) applyStockDelta(ctx context.Context, productID int64, variantID *int64, delta int, orderNo string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // после Commit откат — no-op

	var res sql.Result
	if variantID != nil {
		res, err = tx.ExecContext(ctx,
			"UPDATE product_variants SET stock = stock + $1 WHERE id = $2 AND product_id = $3 AND stock + $1 >= 0",
			delta, *variantID, productID)
	} else {
		res, err = tx.ExecContext(ctx,
			"UPDATE products SET stock = stock + $1 WHERE id = $2 AND stock + $1 >= 0",
			delta, productID)
	}
	if err != nil {
		// страховочный CHECK (stock >= 0) в схеме: нарушение тоже трактуем как нехватку
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			return ErrInsufficientStock
		}
		return fmt.Errorf("failed to update stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if delta < 0 {
			// строка есть, но условие stock >= qty не прошло, либо товара нет вовсе —
			// для вызывающего кода оба случая означают отказ списания
			return r.classifyDecrementFailure(ctx, productID, variantID)
		}
		if variantID != nil {
			return ErrVariantNotFound
		}
		return ErrProductNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stock_movements (product_id, variant_id, delta, order_no, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		productID, variantID, delta, orderNo); err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock update: %w", err)
	}
	return nil
}

// classifyDecrementFailure отличает отсутствующий товар от нехватки остатка,
// чтобы сообщение об ошибке было точным.
func (r *productRepository) classifyDecrementFailure(ctx context.Context, productID int64, variantID *int64) error {
	var exists bool
	var err error
	if variantID != nil {
		err = r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM product_variants WHERE id = $1 AND product_id = $2)",
			*variantID, productID).Scan(&exists)
	} else {
		err = r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID).Scan(&exists)
	}
	if err != nil {
		return err
	}
	if !exists {
		if variantID != nil {
			return ErrVariantNotFound
		}
		return ErrProductNotFound
	}
	return ErrInsufficientStock
}
