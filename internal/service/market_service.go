package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/bot"
	"kalshibot/internal/config"
	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
	"kalshibot/pkg/retry"
)

// RefreshSummary - итог одного прогона обновления снапшотов рынков.
type RefreshSummary struct {
	Pages    int `json:"pages"`
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

// MarketService обновляет кэш снапшотов рынков.
//
// Cron-джоба refresh-markets листает GET /markets курсорной пагинацией
// и записывает снапшоты в таблицу contracts. Сканер читает только кэш,
// поэтому свежесть кандидатов ограничена расписанием этой джобы.
type MarketService struct {
	exchange  exchange.Exchange
	contracts ContractRepositoryInterface
	cfg       config.TradingConfig
	logger    *zap.Logger
}

// NewMarketService создает сервис обновления рынков
func NewMarketService(ex exchange.Exchange, contracts ContractRepositoryInterface, cfg config.TradingConfig, logger *zap.Logger) *MarketService {
	return &MarketService{
		exchange:  ex,
		contracts: contracts,
		cfg:       cfg,
		logger:    logger,
	}
}

// Refresh листает страницы списка рынков и обновляет снапшоты.
//
// Количество страниц за прогон ограничено конфигурацией: бюджет
// запросов к бирже делится между всеми cron-джобами. Страница с
// rate-limit ретраится с учётом Retry-After, ошибки отдельных
// записей не прерывают прогон.
func (s *MarketService) Refresh(ctx context.Context) (*RefreshSummary, error) {
	summary := &RefreshSummary{}
	cursor := ""

	retryCfg := retry.ConservativeConfig()
	retryCfg.RetryIf = retry.IsRetryable

	for page := 0; page < s.cfg.MarketRefreshPages; page++ {
		result, err := retry.DoWithResult(ctx, func() (*exchange.MarketsPage, error) {
			return s.exchange.GetMarkets(ctx, cursor, s.cfg.MarketRefreshPageSize)
		}, retryCfg)
		if err != nil {
			if summary.Pages == 0 {
				return nil, fmt.Errorf("fetch markets page: %w", err)
			}
			// Частичный прогон лучше пустого: следующий запуск долистает
			s.logger.Warn("Market refresh stopped early", zap.Int("pages", summary.Pages), zap.Error(err))
			break
		}

		summary.Pages++
		summary.Fetched += len(result.Markets)

		for i := range result.Markets {
			contract := marketToContract(&result.Markets[i])
			if contract.MarketID == "" {
				summary.Skipped++
				continue
			}
			if err := s.contracts.Upsert(contract); err != nil {
				s.logger.Warn("Failed to upsert market snapshot",
					zap.String("market_id", contract.MarketID),
					zap.Error(err))
				summary.Skipped++
				continue
			}
			summary.Upserted++
			bot.MarketsRefreshed.Inc()
		}

		cursor = result.Cursor
		if cursor == "" {
			break
		}
	}

	s.logger.Info("Market refresh finished",
		zap.Int("pages", summary.Pages),
		zap.Int("upserted", summary.Upserted),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

// marketToContract конвертирует живой рынок в снапшот контракта.
func marketToContract(m *exchange.Market) *models.Contract {
	contract := &models.Contract{
		MarketID:  m.Ticker,
		Question:  m.Title,
		Category:  m.Category,
		YesPrice:  m.YesPrice,
		Liquidity: m.Liquidity,
		Volume:    m.Volume,
		EndDate:   m.CloseTime,
		Resolved:  m.Resolved,
	}
	if m.Resolved && m.Result != "" {
		result := m.Result
		contract.Resolution = &result
		now := time.Now().UTC()
		contract.ResolvedAt = &now
	}
	return contract
}
