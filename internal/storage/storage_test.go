package storage_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
	"github.com/stretchr/testify/assert"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestUserRepository_GetUserByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "pass_hash", "is_admin", "created_at"}).
		AddRow(1, "buyer@example.com", []byte("hash"), false, time.Now())
	mock.ExpectQuery("SELECT id, email, pass_hash, is_admin, created_at FROM users WHERE email").
		WithArgs("buyer@example.com").
		WillReturnRows(rows)

	user, err := repo.GetUserByEmail(context.Background(), "buyer@example.com")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetUserByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewUserRepository(db)

	mock.ExpectQuery("SELECT id, email, pass_hash, is_admin, created_at FROM users WHERE email").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("buyer@example.com", []byte("hash"), false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, time.Now()))

	user, err := repo.CreateUser(context.Background(), &models.User{Email: "buyer@example.com", PassHash: []byte("hash")})
	assert.NoError(t, err)
	assert.Equal(t, int64(5), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	mock.ExpectQuery("SELECT stock, name FROM products WHERE id").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"stock", "name"}).AddRow(7, "Phone X"))

	stock, name, err := repo.GetStock(context.Background(), 10, nil)
	assert.NoError(t, err)
	assert.Equal(t, 7, stock)
	assert.Equal(t, "Phone X", name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetStock_Variant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	variantID := int64(77)
	mock.ExpectQuery("FROM product_variants v JOIN products p").
		WithArgs(variantID, int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"stock", "name"}).AddRow(4, "T-Shirt"))

	stock, name, err := repo.GetStock(context.Background(), 10, &variantID)
	assert.NoError(t, err)
	assert.Equal(t, 4, stock)
	assert.Equal(t, "T-Shirt", name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetStock_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	mock.ExpectQuery("SELECT stock, name FROM products WHERE id").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, _, err := repo.GetStock(context.Background(), 404, nil)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	// условное списание: строка меняется только при достаточном остатке
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(-2, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stock_movements").
		WithArgs(int64(10), nil, -2, "ord-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.DecrementStock(context.Background(), 10, nil, 2, "ord-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStock_Insufficient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	// UPDATE не затронул строк: остатка не хватило
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(-10, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// товар существует, значит дело в остатке
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.DecrementStock(context.Background(), 10, nil, 10, "ord-1")
	assert.ErrorIs(t, err, storage.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStock_ProductMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(-1, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := repo.DecrementStock(context.Background(), 404, nil, 1, "ord-1")
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStock_CheckViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	// нарушение страховочного CHECK (stock >= 0) трактуется как нехватка остатка
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(-3, int64(10)).
		WillReturnError(&pq.Error{Code: "23514"})
	mock.ExpectRollback()

	err := repo.DecrementStock(context.Background(), 10, nil, 3, "ord-1")
	assert.ErrorIs(t, err, storage.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStock_VariantRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	variantID := int64(77)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE product_variants SET stock").
		WithArgs(-1, variantID, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stock_movements").
		WithArgs(int64(10), variantID, -1, "ord-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.DecrementStock(context.Background(), 10, &variantID, 1, "ord-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_IncrementStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(2, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stock_movements").
		WithArgs(int64(10), nil, 2, "ord-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.IncrementStock(context.Background(), 10, nil, 2, "ord-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, time.Now()))
	mock.ExpectQuery("INSERT INTO order_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	order := &models.Order{
		OrderNo:       "ord-42",
		UserID:        1,
		PaymentMethod: models.PaymentMethodCOD,
		Items: []models.OrderItem{
			{ProductID: 10, Name: "Phone X", UnitPriceCents: 1000, Quantity: 2},
		},
	}
	created, err := repo.CreateOrder(context.Background(), order)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, int64(42), created.Items[0].OrderID)
	assert.Equal(t, int64(1), created.Items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateOrder_ItemFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, time.Now()))
	mock.ExpectQuery("INSERT INTO order_items").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	order := &models.Order{
		OrderNo:       "ord-42",
		UserID:        1,
		PaymentMethod: models.PaymentMethodCOD,
		Items: []models.OrderItem{
			{ProductID: 10, Name: "Phone X", UnitPriceCents: 1000, Quantity: 2},
		},
	}
	_, err := repo.CreateOrder(context.Background(), order)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_DeleteOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectExec("DELETE FROM orders WHERE id").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteOrder(context.Background(), 42)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_DeleteOrder_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectExec("DELETE FROM orders WHERE id").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteOrder(context.Background(), 99)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetOrdersByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	now := time.Now()
	orderRows := sqlmock.NewRows([]string{
		"id", "order_no", "user_id", "payment_method", "items_price_cents", "discount_cents", "total_cents",
		"ship_street", "ship_city", "ship_zip", "ship_country", "paid", "paid_at", "created_at",
	}).AddRow(42, "ord-42", 1, "cod", 2000, 0, 2000, "Lenina 1", "Moscow", "101000", "RU", false, nil, now)
	mock.ExpectQuery("SELECT id, order_no, user_id").
		WithArgs(int64(1)).
		WillReturnRows(orderRows)

	itemRows := sqlmock.NewRows([]string{"id", "order_id", "product_id", "variant_id", "name", "unit_price_cents", "quantity"}).
		AddRow(1, 42, 10, nil, "Phone X", 1000, 2)
	mock.ExpectQuery("FROM order_items WHERE order_id").
		WillReturnRows(itemRows)

	orders, err := repo.GetOrdersByUserID(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, "ord-42", orders[0].OrderNo)
	assert.Len(t, orders[0].Items, 1)
	assert.Equal(t, "Phone X", orders[0].Items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetOrdersByUserID_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectQuery("SELECT id, order_no, user_id").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_no", "user_id", "payment_method", "items_price_cents", "discount_cents", "total_cents",
			"ship_street", "ship_city", "ship_zip", "ship_country", "paid", "paid_at", "created_at",
		}))

	orders, err := repo.GetOrdersByUserID(context.Background(), 2)
	assert.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}
