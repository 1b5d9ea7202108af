package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Kalshi   KalshiConfig
	AI       AIConfig
	Trading  TradingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port           int
	Host           string
	UseHTTPS       bool
	CertFile       string
	KeyFile        string
	AllowedOrigins []string // разрешённые CORS origins дашборда
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	CronSecret        string // bearer-токен для cron endpoints
	AdminUser         string // логин admin endpoints
	AdminPasswordHash string // bcrypt-хэш пароля admin endpoints
}

// KalshiConfig - настройки подключения к бирже Kalshi
type KalshiConfig struct {
	BaseURL       string
	AccessKeyID   string // идентификатор API-ключа
	PrivateKeyPEM string // приватный RSA-ключ в PEM (PKCS#8 или PKCS#1)
	DryRun        bool   // симуляция ордеров без обращения к бирже
	RequestsPerSec float64 // лимит запросов к API
	Timeout       time.Duration
}

// AIConfig - настройки сервиса рассуждений
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// TradingConfig - торговые параметры
type TradingConfig struct {
	// Критерии сканера
	MinOdds           float64 // нижняя граница вероятности фаворита
	MaxOdds           float64 // верхняя граница вероятности фаворита
	MaxDays           float64 // максимум дней до резолюции
	MinLiquidity      float64 // минимум контрактов по лучшей цене
	ExcludeCategories []string
	ExcludeKeywords   []string

	// Бюджет и размеры позиций
	DailyBudget     float64 // дневной бюджет в долларах
	MinAllocation   float64 // минимальная аллокация на контракт
	MaxAllocation   float64 // максимальная аллокация на контракт
	MaxPositions    int     // максимум позиций за цикл
	InitialBankroll float64

	// Риск-лимиты
	DrawdownStopRatio   float64       // остановка при bankroll < ratio × initial
	MaxConsecutiveLosses int          // остановка после N проигрышей подряд
	MaxStopLosses24h    int           // остановка после N стоп-лоссов за сутки
	MinHoldTime         time.Duration // минимальное время удержания позиции

	// Исполнение ордеров
	FillWaitTimeout  time.Duration // окно ожидания исполнения ордера
	FillPollInterval time.Duration // интервал опроса статуса ордера
	StaleOrderAge    time.Duration // возраст resting-ордера до отмены

	// Реконсиляция
	OpenTradeLookback   time.Duration // окно поиска открытых позиций
	OutcomeSyncLookback time.Duration // окно синхронизации исходов решений
	OutcomeSyncBatch    int           // размер батча синхронизации
	CleanupRetention    time.Duration // хранение разрешённых контрактов

	// Обновление кэша рынков
	MarketRefreshPages    int // максимум страниц пагинации за прогон
	MarketRefreshPageSize int
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Значения по умолчанию для фильтров сканера.
// Списки исключений покрывают спорт, крипту и прочие категории
// с высокой дисперсией, где у модели нет преимущества.
var (
	defaultExcludeCategories = []string{"Crypto", "Sports", "Entertainment"}

	defaultExcludeKeywords = []string{
		"game", "match", "team", "player", "points", "score", "yards",
		"rebounds", "assists", "goals", "touchdown", "win", "loss",
		"nfl", "nba", "mlb", "nhl", "soccer", "football", "basketball",
		"baseball", "hockey", "tennis", "golf", "olympics", "championship",
		"tournament", "playoff", "season",
		"celebrity", "viral", "trend", "social media", "follower", "views", "likes",
		"surprise", "unexpected", "shock", "crash", "collapse", "disaster",
	}
)

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS:       getEnvAsBool("USE_HTTPS", false),
			CertFile:       getEnv("CERT_FILE", ""),
			KeyFile:        getEnv("KEY_FILE", ""),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "kalshibot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			CronSecret:        getEnv("CRON_SECRET", ""),
			AdminUser:         getEnv("ADMIN_USER", "admin"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Kalshi: KalshiConfig{
			BaseURL:        getEnv("KALSHI_BASE_URL", "https://api.elections.kalshi.com/trade-api/v2"),
			AccessKeyID:    getEnv("KALSHI_ACCESS_KEY_ID", ""),
			PrivateKeyPEM:  getEnv("KALSHI_PRIVATE_KEY", ""),
			DryRun:         getEnvAsBool("DRY_RUN", true),
			RequestsPerSec: getEnvAsFloat("KALSHI_REQUESTS_PER_SEC", 10),
			Timeout:        getEnvAsDuration("KALSHI_TIMEOUT", 15*time.Second),
		},
		AI: AIConfig{
			BaseURL: getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("AI_API_KEY", ""),
			Model:   getEnv("AI_MODEL", "gpt-4o"),
			Timeout: getEnvAsDuration("AI_TIMEOUT", 120*time.Second),
		},
		Trading: TradingConfig{
			MinOdds:           getEnvAsFloat("MIN_ODDS", 0.85),
			MaxOdds:           getEnvAsFloat("MAX_ODDS", 0.98),
			MaxDays:           getEnvAsFloat("MAX_DAYS_TO_RESOLUTION", 2),
			MinLiquidity:      getEnvAsFloat("MIN_LIQUIDITY", 2000),
			ExcludeCategories: getEnvAsSlice("EXCLUDE_CATEGORIES", defaultExcludeCategories),
			ExcludeKeywords:   getEnvAsSlice("EXCLUDE_KEYWORDS", defaultExcludeKeywords),

			DailyBudget:     getEnvAsFloat("DAILY_BUDGET", 100),
			MinAllocation:   getEnvAsFloat("MIN_ALLOCATION", 20),
			MaxAllocation:   getEnvAsFloat("MAX_ALLOCATION", 50),
			MaxPositions:    getEnvAsInt("MAX_POSITIONS", 3),
			InitialBankroll: getEnvAsFloat("INITIAL_BANKROLL", 1000),

			DrawdownStopRatio:    getEnvAsFloat("STOP_LOSS_THRESHOLD", 0.8),
			MaxConsecutiveLosses: getEnvAsInt("MAX_CONSECUTIVE_LOSSES", 3),
			MaxStopLosses24h:     getEnvAsInt("MAX_STOP_LOSSES_24H", 3),
			MinHoldTime:          getEnvAsDuration("MIN_HOLD_TIME", 1*time.Hour),

			FillWaitTimeout:  getEnvAsDuration("FILL_WAIT_TIMEOUT", 30*time.Second),
			FillPollInterval: getEnvAsDuration("FILL_POLL_INTERVAL", 2*time.Second),
			StaleOrderAge:    getEnvAsDuration("STALE_ORDER_AGE", 6*time.Hour),

			OpenTradeLookback:   getEnvAsDuration("OPEN_TRADE_LOOKBACK", 7*24*time.Hour),
			OutcomeSyncLookback: getEnvAsDuration("OUTCOME_SYNC_LOOKBACK", 30*24*time.Hour),
			OutcomeSyncBatch:    getEnvAsInt("OUTCOME_SYNC_BATCH", 100),
			CleanupRetention:    getEnvAsDuration("CLEANUP_RETENTION", 7*24*time.Hour),

			MarketRefreshPages:    getEnvAsInt("MARKET_REFRESH_PAGES", 10),
			MarketRefreshPageSize: getEnvAsInt("MARKET_REFRESH_PAGE_SIZE", 200),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// CRON_SECRET обязателен: без него cron endpoints открыты любому
	if c.Security.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required to protect scheduled endpoints")
	}

	if len(c.Security.CronSecret) < 16 {
		return fmt.Errorf("CRON_SECRET must be at least 16 characters")
	}

	// Ключи биржи обязательны только при реальной торговле
	if !c.Kalshi.DryRun {
		if c.Kalshi.AccessKeyID == "" {
			return fmt.Errorf("KALSHI_ACCESS_KEY_ID is required when DRY_RUN is disabled")
		}
		if c.Kalshi.PrivateKeyPEM == "" {
			return fmt.Errorf("KALSHI_PRIVATE_KEY is required when DRY_RUN is disabled")
		}
	}

	if c.AI.APIKey == "" {
		return fmt.Errorf("AI_API_KEY is required for the allocation engine")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Полоса вероятностей должна быть валидной
	if c.Trading.MinOdds <= 0 || c.Trading.MinOdds >= 1 {
		return fmt.Errorf("MIN_ODDS must be in (0, 1), got %v", c.Trading.MinOdds)
	}
	if c.Trading.MaxOdds <= c.Trading.MinOdds || c.Trading.MaxOdds > 1 {
		return fmt.Errorf("MAX_ODDS must be in (MIN_ODDS, 1], got %v", c.Trading.MaxOdds)
	}

	// Бюджет и аллокации
	if c.Trading.DailyBudget <= 0 {
		return fmt.Errorf("DAILY_BUDGET must be positive, got %v", c.Trading.DailyBudget)
	}
	if c.Trading.MinAllocation <= 0 || c.Trading.MaxAllocation < c.Trading.MinAllocation {
		return fmt.Errorf("allocation bounds invalid: min=%v max=%v",
			c.Trading.MinAllocation, c.Trading.MaxAllocation)
	}
	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("MAX_POSITIONS must be at least 1, got %d", c.Trading.MaxPositions)
	}

	// Риск-лимиты
	if c.Trading.DrawdownStopRatio <= 0 || c.Trading.DrawdownStopRatio >= 1 {
		return fmt.Errorf("STOP_LOSS_THRESHOLD must be in (0, 1), got %v", c.Trading.DrawdownStopRatio)
	}

	// Таймауты исполнения (должны быть положительными)
	if c.Trading.FillWaitTimeout <= 0 {
		return fmt.Errorf("FILL_WAIT_TIMEOUT must be positive, got %v", c.Trading.FillWaitTimeout)
	}
	if c.Trading.FillPollInterval <= 0 || c.Trading.FillPollInterval > c.Trading.FillWaitTimeout {
		return fmt.Errorf("FILL_POLL_INTERVAL must be positive and not exceed FILL_WAIT_TIMEOUT, got %v",
			c.Trading.FillPollInterval)
	}
	if c.Trading.StaleOrderAge <= 0 {
		return fmt.Errorf("STALE_ORDER_AGE must be positive, got %v", c.Trading.StaleOrderAge)
	}

	if c.Kalshi.RequestsPerSec <= 0 {
		return fmt.Errorf("KALSHI_REQUESTS_PER_SEC must be positive, got %v", c.Kalshi.RequestsPerSec)
	}

	if c.Trading.MarketRefreshPages < 1 || c.Trading.MarketRefreshPageSize < 1 {
		return fmt.Errorf("market refresh pagination must be positive")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
