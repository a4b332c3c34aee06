package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/notify"
	"github.com/linemk/storefront/internal/storage"
)

// ErrEmptyOrder возвращается до любых обращений к БД, если корзина пуста.
var ErrEmptyOrder = errors.New("order must contain at least one item")

// InsufficientStockError агрегирует все позиции, по которым не хватило остатка.
// Заказ при этом не создаётся вовсе — частичных заказов не бывает.
type InsufficientStockError struct {
	Items []models.StockCheckResult
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%s: available %d, requested %d", it.ProductName, it.Available, it.Requested))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// CommitmentError означает, что заказ был создан, но списание остатков не удалось
// и заказ удалён компенсацией. Cause — ошибка первого неудавшегося списания.
type CommitmentError struct {
	Cause error
}

func (e *CommitmentError) Error() string {
	return fmt.Sprintf("order placement failed: stock commitment failed: %v", e.Cause)
}

func (e *CommitmentError) Unwrap() error { return e.Cause }

// CartItem — запрошенная позиция корзины. Название и цена приходят от клиента
// и используются только для денормализованного хранения в заказе.
type CartItem struct {
	ProductID      int64
	VariantID      *int64
	Name           string
	UnitPriceCents int64
	Quantity       int
}

// PlaceOrderRequest — вход оформления заказа с заранее посчитанными итогами.
type PlaceOrderRequest struct {
	Items           []CartItem
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	ItemsPriceCents int64
	DiscountCents   int64
	TotalCents      int64
}

// CheckoutService оформляет заказ: проверка остатков -> создание заказа -> списание,
// с компенсирующим удалением заказа при неудачном списании.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*models.Order, error)
}

type checkoutService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	notifier    notify.Notifier
}

func NewCheckoutService(log *slog.Logger, productRepo storage.ProductStorage, orderRepo storage.OrderStorage, notifier notify.Notifier) CheckoutService {
	return &checkoutService{
		log:         log,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		notifier:    notifier,
	}
}

// PlaceOrder выполняет оформление заказа за пять шагов:
//  1. параллельная проверка остатка по каждой позиции (только чтения);
//  2. отказ до любых записей, если хотя бы по одной позиции не хватает остатка,
//     с перечислением всех недостающих позиций в одной ошибке;
//  3. создание заказа (единственная точка, после которой заказ виден другим читателям);
//  4. параллельное условное списание остатков по каждой позиции, помеченное номером заказа;
//  5. при любом сбое списания — возврат уже списанных позиций и удаление заказа целиком.
//
// Проверка шага 1 и списание шага 4 не связаны одной транзакцией, поэтому два
// параллельных оформления могут обе пройти шаг 1 по одному дефицитному товару.
// Безопасность обеспечивает само списание: оно атомарно перепроверяет остаток
// на записи и отказывает, если ушло бы в минус.
func (s *checkoutService) PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*models.Order, error) {
	const op = "service.CheckoutService.PlaceOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	logger.Info("starting order placement", slog.Int("items", len(req.Items)))

	// Шаг 1: независимые чтения остатков, результат сохраняет привязку к позиции
	results := make([]models.StockCheckResult, len(req.Items))
	checkErrs := make([]error, len(req.Items))
	var wg sync.WaitGroup
	for i, item := range req.Items {
		wg.Add(1)
		go func(i int, item CartItem) {
			defer wg.Done()
			stock, name, err := s.productRepo.GetStock(ctx, item.ProductID, item.VariantID)
			if err != nil {
				checkErrs[i] = err
				return
			}
			results[i] = models.StockCheckResult{
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				ProductName: name,
				Requested:   item.Quantity,
				Available:   stock,
				OK:          stock >= item.Quantity,
			}
		}(i, item)
	}
	wg.Wait()
	for _, err := range checkErrs {
		if err != nil {
			logger.Error("stock check failed", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to check stock: %w", op, err)
		}
	}

	// Шаг 2: жёсткое предусловие — все позиции должны быть покрыты целиком
	var short []models.StockCheckResult
	for _, res := range results {
		if !res.OK {
			short = append(short, res)
		}
	}
	if len(short) > 0 {
		logger.Warn("insufficient stock", slog.Int("shortItems", len(short)))
		return nil, &InsufficientStockError{Items: short}
	}

	// Шаг 3: создание заказа; идентификаторы позиций от клиента не переносятся,
	// их назначает хранилище
	order := &models.Order{
		OrderNo:         uuid.NewString(),
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPriceCents: req.ItemsPriceCents,
		DiscountCents:   req.DiscountCents,
		TotalCents:      req.TotalCents,
	}
	if req.PaymentMethod == models.PaymentMethodOnline {
		now := time.Now()
		order.Paid = true
		order.PaidAt = &now
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	order, err := s.orderRepo.CreateOrder(ctx, order)
	if err != nil {
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}
	logger.Info("order created", slog.Int64("orderID", order.ID), slog.String("orderNo", order.OrderNo))

	// Шаг 4: параллельные условные списания, каждое помечено номером заказа
	decErrs := make([]error, len(order.Items))
	var decWG sync.WaitGroup
	for i := range order.Items {
		decWG.Add(1)
		go func(i int) {
			defer decWG.Done()
			item := order.Items[i]
			decErrs[i] = s.productRepo.DecrementStock(ctx, item.ProductID, item.VariantID, item.Quantity, order.OrderNo)
		}(i)
	}
	decWG.Wait()

	var commitErr error
	var succeeded []int
	for i, err := range decErrs {
		if err == nil {
			succeeded = append(succeeded, i)
			continue
		}
		if commitErr == nil {
			commitErr = err
		}
	}

	// Шаг 5: компенсация — заказ без зарезервированного остатка существовать не должен
	if commitErr != nil {
		logger.Error("stock commitment failed, compensating",
			slog.Int64("orderID", order.ID), slog.Any("error", commitErr))
		s.compensate(ctx, logger, order, succeeded)
		return nil, fmt.Errorf("%s: %w", op, &CommitmentError{Cause: commitErr})
	}

	logger.Info("order placed successfully", slog.Int64("orderID", order.ID))
	s.dispatchNotification(order)
	return order, nil
}

// compensate возвращает уже списанные позиции на склад и удаляет заказ целиком.
// Обе операции best-effort: их сбой логируется и не ретраится.
func (s *checkoutService) compensate(ctx context.Context, logger *slog.Logger, order *models.Order, succeeded []int) {
	for _, i := range succeeded {
		item := order.Items[i]
		if err := s.productRepo.IncrementStock(ctx, item.ProductID, item.VariantID, item.Quantity, order.OrderNo); err != nil {
			logger.Error("failed to restore stock during compensation",
				slog.Int64("productID", item.ProductID), slog.Any("error", err))
		}
	}
	if err := s.orderRepo.DeleteOrder(ctx, order.ID); err != nil {
		logger.Error("failed to delete order during compensation",
			slog.Int64("orderID", order.ID), slog.Any("error", err))
	}
}

// dispatchNotification отправляет уведомление о заказе в отдельной горутине.
// Уведомление не лежит на критическом пути: сбой только логируется и никогда
// не влияет на результат оформления.
func (s *checkoutService) dispatchNotification(order *models.Order) {
	if s.notifier == nil {
		return
	}
	event := notify.OrderPlacedEvent{
		OrderNo:    order.OrderNo,
		UserID:     order.UserID,
		TotalCents: order.TotalCents,
		Paid:       order.Paid,
		PlacedAt:   order.CreatedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.OrderPlaced(ctx, event); err != nil {
			s.log.Error("failed to send order notification",
				slog.String("orderNo", order.OrderNo), slog.Any("error", err))
		}
	}()
}
