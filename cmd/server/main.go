package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/storefront/internal/app"
	"github.com/linemk/storefront/internal/app/handlers"
	appmw "github.com/linemk/storefront/internal/app/middleware"
	"github.com/linemk/storefront/internal/config"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/lib/logger"
	"github.com/linemk/storefront/internal/lib/logger/handlers/urllog"
	"github.com/linemk/storefront/internal/notify"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storage"
	"github.com/pkg/errors"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	// Redis для лимитера оформления заказов
	rdb := rd.NewClient(&rd.Options{
		Addr: cfg.Redis.Address,
		DB:   cfg.Redis.DB,
	})
	defer rdb.Close()

	// Kafka-уведомления о заказах (вне критического пути оформления)
	notifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer notifier.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(chimw.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(chimw.Recoverer)
	router.Use(chimw.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	catalogService := service.NewCatalogService(application.Logger, productRepo)
	checkoutService := service.NewCheckoutService(application.Logger, productRepo, orderRepo, notifier)
	orderListService := service.NewOrderListService(application.Logger, orderRepo)

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))
	// витрина каталога доступна без токена
	router.Get("/api/products", handlers.ProductsHandler(application.Logger, catalogService))
	router.Get("/api/products/{id}", handlers.ProductHandler(application.Logger, catalogService))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware()
		r.Use(jwtMW)
		// эндпоинт оформления заказа (с лимитером по пользователю)
		r.With(appmw.CheckoutRateLimit(application.Logger, rdb, cfg.RateLimit.CheckoutLimit, cfg.RateLimit.CheckoutWindow)).
			Post("/api/orders", handlers.CheckoutHandler(application.Logger, checkoutService))
		// эндпоинт "мои заказы"
		r.Get("/api/orders", handlers.OrdersHandler(application.Logger, orderListService))

		// административный контур каталога
		r.Group(func(admin chi.Router) {
			admin.Use(jwtmiddleware.AdminOnly)
			admin.Post("/api/admin/products", handlers.CreateProductHandler(application.Logger, catalogService))
			admin.Post("/api/admin/products/{id}/restock", handlers.RestockHandler(application.Logger, catalogService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
