package utils

import (
	"math"
)

// math.go - математические утилиты для торговли бинарными контрактами
//
// Назначение:
// Вспомогательные функции для работы с вероятностями и деньгами.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - CentsToProb / ProbToCents: конвертация цен API (центы) в доли единицы
// - FloorContracts: округление количества контрактов вниз до 4 знаков
// - CalculateROI: доходность позиции в процентах
// - Clamp: ограничение значения диапазоном

// CentsToProb конвертирует цену в центах (1..99) в вероятность (0..1).
//
// API биржи отдаёт цены контрактов в центах. Внутри приложения
// все цены хранятся в долях единицы.
//
// Примеры:
//   - CentsToProb(93) = 0.93
//   - CentsToProb(5) = 0.05
func CentsToProb(cents int) float64 {
	return float64(cents) / 100
}

// ProbToCents конвертирует вероятность в цену лимитного ордера в центах.
//
// Результат всегда ограничен диапазоном [1, 99]: биржа не принимает
// ордера по 0 или 100 центов. Округление вниз - не переплачиваем.
//
// Примеры:
//   - ProbToCents(0.93) = 93
//   - ProbToCents(0.999) = 99
//   - ProbToCents(0.001) = 1
func ProbToCents(prob float64) int {
	cents := int(math.Floor(prob * 100))
	if cents < 1 {
		return 1
	}
	if cents > 99 {
		return 99
	}
	return cents
}

// FloorContracts округляет количество контрактов ВНИЗ до 4 знаков.
//
// Округление вниз гарантирует, что стоимость позиции не превысит
// выделенную аллокацию.
//
// Примеры:
//   - FloorContracts(52.63157894) = 52.6315
//   - FloorContracts(100.0) = 100.0
func FloorContracts(v float64) float64 {
	return math.Floor(v*10000) / 10000
}

// CalculateROI возвращает доходность позиции в процентах.
//
// Формула:
//
//	ROI (%) = PnL / PositionSize × 100
//
// Если размер позиции некорректен, возвращает 0.
func CalculateROI(pnl, positionSize float64) float64 {
	if positionSize <= 0 {
		return 0
	}
	return pnl / positionSize * 100
}

// WinRate возвращает долю выигрышей в процентах.
func WinRate(wins, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
