package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kalshibot/internal/api/handlers"
	"kalshibot/internal/api/middleware"
	"kalshibot/internal/config"
	"kalshibot/internal/service"
	"kalshibot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	MarketService    service.MarketServiceInterface
	TradingService   service.TradingServiceInterface
	ReconcileService service.ReconcileServiceInterface
	AnalysisService  service.AnalysisServiceInterface
	DashboardService service.DashboardServiceInterface
	Hub              *websocket.Hub
	Config           *config.Config
	Logger           *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
//
// Структура маршрутов:
//
// /api/cron/ (POST, bearer CRON_SECRET)
//
//	├── /refresh-markets - обновить кэш снапшотов рынков
//	├── /trade - торговый цикл (?forced=true поддерживается)
//	├── /check-fills - сверка исполнения открытых позиций
//	├── /sync-orders - сверка отменённых ордеров
//	├── /sync-outcomes - синхронизация исходов решений
//	├── /cleanup - очистка устаревших снапшотов
//	└── /monthly-analysis - месячный отчёт
//
// /api/v1/
//
//	├── GET /dashboard - сводка состояния бота
//	├── GET /decisions?limit=N - последние решения движка
//	└── POST /admin/orders/cancel-all - отменить все ордера (basic auth)
//
// /ws/stream - WebSocket для real-time уведомлений
// /health - проверка живости
// /metrics - Prometheus метрики
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. CronAuth / AdminAuth (для защищенных групп)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))

	cronHandler := handlers.NewCronHandler(
		deps.MarketService,
		deps.TradingService,
		deps.ReconcileService,
		deps.AnalysisService,
	)
	dashboardHandler := handlers.NewDashboardHandler(deps.DashboardService)
	adminHandler := handlers.NewAdminHandler(deps.ReconcileService)

	// Cron routes: запускаются внешним планировщиком
	cron := router.PathPrefix("/api/cron").Subrouter()
	cron.Use(middleware.CronAuth(deps.Config.Security.CronSecret))
	cron.HandleFunc("/refresh-markets", cronHandler.RefreshMarkets).Methods("POST")
	cron.HandleFunc("/trade", cronHandler.Trade).Methods("POST")
	cron.HandleFunc("/check-fills", cronHandler.CheckFills).Methods("POST")
	cron.HandleFunc("/sync-orders", cronHandler.SyncOrders).Methods("POST")
	cron.HandleFunc("/sync-outcomes", cronHandler.SyncOutcomes).Methods("POST")
	cron.HandleFunc("/cleanup", cronHandler.Cleanup).Methods("POST")
	cron.HandleFunc("/monthly-analysis", cronHandler.MonthlyAnalysis).Methods("POST")

	// Read-only routes дашборда
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/dashboard", dashboardHandler.GetDashboard).Methods("GET")
	api.HandleFunc("/decisions", dashboardHandler.GetDecisions).Methods("GET")

	// Admin routes
	admin := router.PathPrefix("/api/v1/admin").Subrouter()
	admin.Use(middleware.AdminAuth(deps.Config.Security.AdminUser, deps.Config.Security.AdminPasswordHash))
	admin.HandleFunc("/orders/cancel-all", adminHandler.CancelAllOrders).Methods("POST")

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
