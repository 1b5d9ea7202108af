package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kalshibot/internal/ai"
	"kalshibot/internal/api"
	"kalshibot/internal/bot"
	"kalshibot/internal/config"
	"kalshibot/internal/exchange"
	"kalshibot/internal/repository"
	"kalshibot/internal/service"
	"kalshibot/internal/websocket"
	"kalshibot/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	// .env удобен при локальном запуске, в production его нет
	_ = godotenv.Load()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	zapLogger.Info("Connected to database",
		zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Клиент биржи
	kalshi, err := exchange.NewClient(exchange.ClientConfig{
		BaseURL:        cfg.Kalshi.BaseURL,
		AccessKeyID:    cfg.Kalshi.AccessKeyID,
		PrivateKeyPEM:  cfg.Kalshi.PrivateKeyPEM,
		DryRun:         cfg.Kalshi.DryRun,
		RequestsPerSec: cfg.Kalshi.RequestsPerSec,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init exchange client", zap.Error(err))
	}
	if cfg.Kalshi.DryRun {
		zapLogger.Warn("Dry run is enabled, orders will be simulated")
	}

	// Репозитории
	contractRepo := repository.NewContractRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)

	// Компоненты торгового конвейера
	scanner := bot.NewScanner(contractRepo, kalshi, zapLogger)
	aiClient := ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, zapLogger)
	analyzer := ai.NewAnalyzer(aiClient, cfg.Trading, zapLogger)
	riskGate := bot.NewRiskGate(tradeRepo, metricsRepo, cfg.Trading, zapLogger)
	executor := bot.NewExecutor(kalshi, tradeRepo, contractRepo, decisionRepo, riskGate,
		cfg.Trading, cfg.Kalshi.DryRun, zapLogger)
	tracker := bot.NewPositionTracker(kalshi, tradeRepo, metricsRepo,
		cfg.Trading.InitialBankroll, zapLogger)

	// Сервисы
	marketService := service.NewMarketService(kalshi, contractRepo, cfg.Trading, zapLogger)
	tradingService := service.NewTradingService(scanner, analyzer, executor, tracker,
		tradeRepo, decisionRepo, metricsRepo, cfg.Trading, zapLogger)
	reconcileService := service.NewReconcileService(kalshi, tradeRepo, contractRepo,
		decisionRepo, cfg.Trading, zapLogger)
	analysisService := service.NewAnalysisService(tradeRepo, metricsRepo, zapLogger)
	dashboardService := service.NewDashboardService(tracker, tradeRepo, decisionRepo, zapLogger)

	// WebSocket hub для real-time уведомлений дашборда
	hub := websocket.NewHub(cfg.Server.AllowedOrigins, zapLogger)
	go hub.Run()
	defer hub.Stop()

	tradingService.SetWebSocketHub(hub)
	reconcileService.SetWebSocketHub(hub)

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		MarketService:    marketService,
		TradingService:   tradingService,
		ReconcileService: reconcileService,
		AnalysisService:  analysisService,
		DashboardService: dashboardService,
		Hub:              hub,
		Config:           cfg,
		Logger:           zapLogger,
	})

	// HTTP сервер
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
		// Торговый цикл держит соединение до конца прогона,
		// поэтому write timeout заметно больше обычного
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		zapLogger.Info("Starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				zapLogger.Fatal("Server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zapLogger.Fatal("Server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
