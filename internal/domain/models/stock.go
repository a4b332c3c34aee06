package models

// StockCheckResult — результат проверки остатка по одной позиции корзины.
// Не сохраняется в БД, формируется заново при каждой попытке оформления.
type StockCheckResult struct {
	ProductID   int64
	VariantID   *int64
	ProductName string
	Requested   int
	Available   int
	OK          bool
}
