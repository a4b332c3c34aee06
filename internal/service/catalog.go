package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/storage"
)

// CatalogService — витрина и административные операции над каталогом.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	// Restock пополняет остаток товара или варианта. Движение остатка
	// записывается без номера заказа — это административная операция.
	Restock(ctx context.Context, productID int64, variantID *int64, qty int) error
}

type catalogService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
}

func NewCatalogService(log *slog.Logger, productRepo storage.ProductStorage) CatalogService {
	return &catalogService{log: log, productRepo: productRepo}
}

func (s *catalogService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	const op = "service.CatalogService.ListProducts"
	products, err := s.productRepo.ListProducts(ctx)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list products: %w", op, err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.CatalogService.GetProduct"
	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		s.log.Error("failed to get product", slog.String("op", op), slog.Int64("productID", id), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	const op = "service.CatalogService.CreateProduct"
	logger := s.log.With(slog.String("op", op), slog.String("name", product.Name))
	logger.Info("creating product")

	created, err := s.productRepo.CreateProduct(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create product: %w", op, err)
	}
	logger.Info("product created", slog.Int64("productID", created.ID))
	return created, nil
}

func (s *catalogService) Restock(ctx context.Context, productID int64, variantID *int64, qty int) error {
	const op = "service.CatalogService.Restock"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", productID), slog.Int("qty", qty))

	if qty <= 0 {
		return fmt.Errorf("%s: quantity must be positive", op)
	}
	if err := s.productRepo.IncrementStock(ctx, productID, variantID, qty, ""); err != nil {
		logger.Error("failed to restock", slog.Any("error", err))
		return fmt.Errorf("%s: failed to restock: %w", op, err)
	}
	logger.Info("restocked")
	return nil
}
