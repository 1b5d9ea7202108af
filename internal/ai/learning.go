package ai

import (
	"fmt"
	"math"
	"strings"

	"kalshibot/internal/models"
	"kalshibot/pkg/utils"
)

// BuildHistoricalContext собирает текстовый блок с прошлыми результатами
// для пользовательского промпта.
//
// На вход подаются закрытые сделки (новые первыми) и решения с записанным
// исходом. Пустая история означает холодный старт, и модель об этом
// предупреждается явно.
func BuildHistoricalContext(trades []*models.Trade, decisions []*models.AIDecision) string {
	if len(trades) == 0 {
		return "No historical trades yet. This is a fresh start."
	}

	wins, losses := 0, 0
	totalPnL := 0.0
	totalROI := 0.0
	roiSamples := 0
	for _, t := range trades {
		switch t.Status {
		case models.TradeStatusWon:
			wins++
		case models.TradeStatusLost, models.TradeStatusStopLoss:
			losses++
		}
		if t.PnL != nil {
			totalPnL += *t.PnL
			if t.PositionSize > 0 {
				totalROI += *t.PnL / t.PositionSize
				roiSamples++
			}
		}
	}

	avgROI := 0.0
	if roiSamples > 0 {
		avgROI = totalROI / float64(roiSamples)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HISTORICAL PERFORMANCE (last %d trades):\n", len(trades))
	fmt.Fprintf(&b, "- Win Rate: %.1f%%\n", utils.WinRate(wins, wins+losses))
	fmt.Fprintf(&b, "- Average ROI: %.2f%%\n", avgROI*100)
	fmt.Fprintf(&b, "- Total P&L: $%.2f\n", totalPnL)

	writeConfidenceBuckets(&b, decisions)
	writeLosingPatterns(&b, trades)
	writeRecentLosses(&b, trades)

	return strings.TrimRight(b.String(), "\n")
}

// writeConfidenceBuckets печатает калибровку уверенности: как часто
// решения с высокой и средней уверенностью реально выигрывали.
func writeConfidenceBuckets(b *strings.Builder, decisions []*models.AIDecision) {
	type bucket struct {
		label string
		lo    float64
		hi    float64
		wins  int
		total int
	}

	buckets := []bucket{
		{label: "High confidence (>=0.85)", lo: 0.85, hi: 1.01},
		{label: "Medium confidence (0.70-0.85)", lo: 0.70, hi: 0.85},
	}

	for _, d := range decisions {
		if d.Outcome == nil {
			continue
		}
		for i := range buckets {
			if d.Confidence >= buckets[i].lo && d.Confidence < buckets[i].hi {
				buckets[i].total++
				if *d.Outcome == models.OutcomeWin {
					buckets[i].wins++
				}
			}
		}
	}

	b.WriteString("\nCONFIDENCE CALIBRATION:\n")
	for _, bk := range buckets {
		if bk.total == 0 {
			fmt.Fprintf(b, "- %s: no resolved decisions yet\n", bk.label)
			continue
		}
		fmt.Fprintf(b, "- %s: %.1f%% win rate over %d decisions\n",
			bk.label, float64(bk.wins)/float64(bk.total)*100, bk.total)
	}
}

// writeLosingPatterns печатает суммарные потери по проигранным сделкам.
// Модель видит не только частоту ошибок, но и их цену в долларах.
func writeLosingPatterns(b *strings.Builder, trades []*models.Trade) {
	totalLoss := 0.0
	losing := 0
	for _, t := range trades {
		if t.Status != models.TradeStatusLost && t.Status != models.TradeStatusStopLoss {
			continue
		}
		losing++
		if t.PnL != nil {
			totalLoss += math.Abs(*t.PnL)
		}
	}

	b.WriteString("\nLOSING PATTERNS (AVOID):\n")
	if losing == 0 {
		b.WriteString("- none\n")
		return
	}
	fmt.Fprintf(b, "- All losing trades: Lost $%.2f over %d trades\n", totalLoss, losing)
}

// writeRecentLosses печатает последние проигранные сделки вместе
// с обоснованием, с которым они открывались.
func writeRecentLosses(b *strings.Builder, trades []*models.Trade) {
	const maxLosses = 5

	b.WriteString("\nRECENT MISTAKES (avoid similar contracts):\n")
	shown := 0
	for _, t := range trades {
		if t.Status != models.TradeStatusLost && t.Status != models.TradeStatusStopLoss {
			continue
		}
		fmt.Fprintf(b, "- %s: %s -> LOST\n", truncate(t.Question, 60), truncate(t.AIReasoning, 100))
		shown++
		if shown >= maxLosses {
			break
		}
	}
	if shown == 0 {
		b.WriteString("- none\n")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
