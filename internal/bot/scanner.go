package bot

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"kalshibot/internal/exchange"
	"kalshibot/internal/models"
)

// contractSource - источник кэшированных снапшотов рынков для сканера.
// Реализуется repository.ContractRepository.
type contractSource interface {
	GetUnresolved() ([]*models.Contract, error)
}

// Scanner отбирает высоковероятностные контракты из кэша снапшотов.
//
// Подход filter-then-fetch: сначала дешёвые фильтры по кэшу, затем
// дорогое обогащение стаканом только для прошедших кандидатов.
// Ошибка обогащения одного рынка не роняет скан: рынок пропускается,
// ошибка попадает в warnings.
type Scanner struct {
	contracts contractSource
	exchange  exchange.Exchange
	logger    *zap.Logger
}

// NewScanner создает сканер контрактов
func NewScanner(contracts contractSource, ex exchange.Exchange, logger *zap.Logger) *Scanner {
	return &Scanner{
		contracts: contracts,
		exchange:  ex,
		logger:    logger,
	}
}

// Scan возвращает кандидатов, прошедших все фильтры, отсортированных
// по живой ликвидности (по убыванию), и список предупреждений
// по рынкам, не прошедшим обогащение.
func (s *Scanner) Scan(ctx context.Context, criteria models.ScanCriteria) ([]models.Candidate, []string, error) {
	cached, err := s.contracts.GetUnresolved()
	if err != nil {
		return nil, nil, fmt.Errorf("load cached markets: %w", err)
	}

	s.logger.Info("Scanning cached markets",
		zap.Int("cached", len(cached)),
		zap.Float64("min_odds", criteria.MinOdds),
		zap.Float64("max_odds", criteria.MaxOdds))

	if len(cached) == 0 {
		s.logger.Warn("Market cache is empty, refresh cron may not have run yet")
		return nil, nil, nil
	}

	now := time.Now()
	filtered := make([]*models.Contract, 0, len(cached))
	for _, c := range cached {
		if s.passesFilters(c, criteria, now) {
			filtered = append(filtered, c)
		}
	}

	s.logger.Info("High-conviction candidates after cache filters",
		zap.Int("candidates", len(filtered)))

	candidates, warnings := s.enrich(ctx, filtered, criteria)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Liquidity > candidates[j].Liquidity
	})

	ScansTotal.Inc()
	CandidatesFound.Set(float64(len(candidates)))
	EnrichmentWarnings.Add(float64(len(warnings)))

	s.logger.Info("Scan complete",
		zap.Int("qualifying", len(candidates)),
		zap.Int("enrichment_warnings", len(warnings)))

	return candidates, warnings, nil
}

// passesFilters применяет дешёвые фильтры по данным кэша.
//
// Полоса вероятности асимметричная: проходят рынки с YES-ценой
// >= minOdds либо <= 1-maxOdds. Середина диапазона (низкая убеждённость)
// отсекается целиком.
func (s *Scanner) passesFilters(c *models.Contract, criteria models.ScanCriteria, now time.Time) bool {
	// Нулевая цена означает разрешённый или неактивный рынок
	if c.YesPrice == 0 {
		return false
	}

	highYes := c.YesPrice >= criteria.MinOdds
	highNo := c.YesPrice <= 1-criteria.MaxOdds
	if !highYes && !highNo {
		return false
	}

	days := c.DaysToResolution(now)
	if days > criteria.MaxDays || days < 0 {
		return false
	}

	if c.Resolved {
		return false
	}

	if c.Category != "" {
		for _, cat := range criteria.ExcludeCategories {
			if c.Category == cat {
				return false
			}
		}
	}

	questionLower := strings.ToLower(c.Question)
	for _, keyword := range criteria.ExcludeKeywords {
		if strings.Contains(questionLower, strings.ToLower(keyword)) {
			return false
		}
	}

	return isSimpleQuestion(c.Question)
}

// enrich запрашивает стакан каждого кандидата и фильтрует по живой
// ликвидности: количеству контрактов по лучшей цене на фаворитной стороне.
func (s *Scanner) enrich(ctx context.Context, filtered []*models.Contract, criteria models.ScanCriteria) ([]models.Candidate, []string) {
	now := time.Now()
	candidates := make([]models.Candidate, 0, len(filtered))
	var warnings []string

	for _, c := range filtered {
		orderbook, err := s.exchange.GetOrderbook(ctx, c.MarketID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", c.MarketID, err))
			continue
		}

		liquidity := orderbook.ContractsAtBestPrice(c.FavoredSide())
		if liquidity < criteria.MinLiquidity {
			continue
		}

		candidates = append(candidates, models.Candidate{
			Contract:  *c,
			Liquidity: liquidity,
			DaysLeft:  c.DaysToResolution(now),
		})
	}

	return candidates, warnings
}

// Эвристики сложных вопросов: рынки с несколькими условиями
// ("yes X: Y, no Z: W") разрешаются непредсказуемо и отсеиваются.
var (
	yesColonRe = regexp.MustCompile(`(?i)\b(yes|y)\s+[^,]+:`)
	noColonRe  = regexp.MustCompile(`(?i)\b(no|n)\s+[^,]+:`)
	yesCommaRe = regexp.MustCompile(`(?i)\byes\s+[^,]+,`)
	noCommaRe  = regexp.MustCompile(`(?i)\bno\s+[^,]+,`)
)

// isSimpleQuestion сообщает, выглядит ли вопрос рынка как одиночный
// бинарный вопрос, а не связка условий.
func isSimpleQuestion(question string) bool {
	if strings.TrimSpace(question) == "" {
		return false
	}

	if len(question) > 200 {
		return false
	}

	yesClauses := len(yesColonRe.FindAllString(question, -1))
	noClauses := len(noColonRe.FindAllString(question, -1))
	if yesClauses > 1 || noClauses > 1 || yesClauses+noClauses > 2 {
		return false
	}

	if strings.Count(question, ",") > 2 {
		return false
	}

	if len(yesCommaRe.FindAllString(question, -1)) > 1 {
		return false
	}
	if len(noCommaRe.FindAllString(question, -1)) > 1 {
		return false
	}

	return true
}
