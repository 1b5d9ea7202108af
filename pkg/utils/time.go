package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Границы периодов и временные диапазоны, используемые
// реконсиляцией (сопоставление ордеров по окну времени)
// и месячной аналитикой.

// TimeRange представляет временной диапазон
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains проверяет, попадает ли время в диапазон (границы включительно)
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}

// WindowAround возвращает диапазон [t-delta, t+delta].
//
// Используется для сопоставления биржевых ордеров с позициями,
// у которых не сохранён идентификатор ордера: ордер считается
// "нашим", если создан в пределах delta от исполнения позиции.
func WindowAround(t time.Time, delta time.Duration) TimeRange {
	return TimeRange{
		Start: t.Add(-delta),
		End:   t.Add(delta),
	}
}

// GetMonthStartFrom возвращает начало месяца для указанного времени
//
// Параметры:
//   - t: исходное время
//
// Возвращает: 1-е число месяца 00:00:00 UTC
func GetMonthStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// GetMonthEndFrom возвращает конец месяца для указанного времени
func GetMonthEndFrom(t time.Time) time.Time {
	t = t.UTC()
	// Переходим к первому числу следующего месяца и отнимаем наносекунду
	firstOfNextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNextMonth.Add(-time.Nanosecond)
}

// GetPreviousMonthRange возвращает диапазон предыдущего календарного месяца.
//
// Используется месячной аналитикой: прогон в начале месяца агрегирует
// завершённые позиции за прошлый месяц.
func GetPreviousMonthRange(now time.Time) TimeRange {
	prev := GetMonthStartFrom(now).AddDate(0, -1, 0)
	return TimeRange{
		Start: prev,
		End:   GetMonthEndFrom(prev),
	}
}

// MonthKey возвращает ключ месяца в формате YYYY-MM
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
