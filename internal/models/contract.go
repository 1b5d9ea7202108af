package models

import "time"

// Contract представляет снапшот бинарного рынка Kalshi.
//
// Таблица contracts выполняет двойную роль:
//  1. Кэш рыночных данных для сканера (обновляется cron-джобой refresh-markets)
//  2. Реестр контрактов, по которым были открыты позиции (для реконсиляции)
//
// Цены хранятся в долях единицы (0..1), а не в центах.
// Конвертация из центов API выполняется на границе exchange-клиента.
type Contract struct {
	ID               int        `json:"id" db:"id"`
	MarketID         string     `json:"market_id" db:"market_id"` // тикер рынка, например "KXHIGHNY-25DEC31-B55"
	Question         string     `json:"question" db:"question"`
	Category         string     `json:"category" db:"category"`
	YesPrice         float64    `json:"yes_price" db:"yes_price"` // текущая вероятность YES, 0..1
	Liquidity        float64    `json:"liquidity" db:"liquidity"` // контракты по лучшей цене на фаворитной стороне
	Volume           float64    `json:"volume" db:"volume"`
	EndDate          *time.Time `json:"end_date,omitempty" db:"end_date"`
	Resolved         bool       `json:"resolved" db:"resolved"`
	Resolution       *string    `json:"resolution,omitempty" db:"resolution"` // "yes" / "no" после резолюции
	ResolvedAt       *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	DiscoveredAt     time.Time  `json:"discovered_at" db:"discovered_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// DaysToResolution возвращает количество дней до резолюции рынка.
//
// Дробное значение: 36 часов = 1.5 дня. Отрицательное значение означает,
// что дата резолюции уже в прошлом. Если дата неизвестна, возвращает -1.
func (c *Contract) DaysToResolution(now time.Time) float64 {
	if c.EndDate == nil {
		return -1
	}
	return c.EndDate.Sub(now).Hours() / 24
}

// FavoredSide возвращает сторону-фаворита: "yes" при вероятности > 0.5, иначе "no".
func (c *Contract) FavoredSide() string {
	if c.YesPrice > 0.5 {
		return SideYes
	}
	return SideNo
}

// FavoredPrice возвращает вероятность фаворитной стороны (всегда >= 0.5 при валидной цене).
func (c *Contract) FavoredPrice() float64 {
	if c.YesPrice > 0.5 {
		return c.YesPrice
	}
	return 1 - c.YesPrice
}

// Candidate представляет контракт, прошедший все фильтры сканера,
// обогащённый живой ликвидностью из стакана.
type Candidate struct {
	Contract  Contract `json:"contract"`
	Liquidity float64  `json:"liquidity"`         // контракты по лучшей цене, live
	DaysLeft  float64  `json:"days_to_resolution"`
}

// ScanCriteria описывает критерии отбора контрактов сканером.
//
// Фильтр по вероятности асимметричный: проходят контракты с YES-ценой
// >= MinOdds ЛИБО <= 1-MaxOdds. Обе ветви означают фаворита с вероятностью
// в полосе [MinOdds, MaxOdds], просто фаворитом может быть любая сторона.
type ScanCriteria struct {
	MinOdds           float64  // нижняя граница вероятности фаворита
	MaxOdds           float64  // верхняя граница вероятности фаворита
	MaxDays           float64  // максимум дней до резолюции
	MinLiquidity      float64  // минимум контрактов по лучшей цене
	ExcludeCategories []string // категории, исключённые целиком
	ExcludeKeywords   []string // подстроки в вопросе (без учёта регистра)
}
