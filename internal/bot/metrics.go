package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Экспортируются через /metrics (cmd/server). Используются для
// Grafana-дашбордов и алертов: молчащий сканер, растущие отказы
// исполнения, зависшие ордера.

// ============ Сканер ============

// ScansTotal - количество прогонов сканера
var ScansTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "kalshibot",
		Subsystem: "scanner",
		Name:      "scans_total",
		Help:      "Total number of market scans",
	},
)

// CandidatesFound - количество кандидатов на выходе последнего скана
var CandidatesFound = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "kalshibot",
		Subsystem: "scanner",
		Name:      "candidates_found",
		Help:      "Candidates produced by the most recent scan",
	},
)

// EnrichmentWarnings - рынки, не прошедшие обогащение стаканом
var EnrichmentWarnings = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "kalshibot",
		Subsystem: "scanner",
		Name:      "enrichment_warnings_total",
		Help:      "Markets that failed orderbook enrichment during scans",
	},
)

// ============ Исполнение ============

// TradesExecuted - исполненные позиции по результату (success/failure)
var TradesExecuted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kalshibot",
		Subsystem: "executor",
		Name:      "trades_total",
		Help:      "Plan items executed, labeled by result",
	},
	[]string{"result"},
)

// FillTimeouts - ордера, не исполнившиеся в окне ожидания
var FillTimeouts = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "kalshibot",
		Subsystem: "executor",
		Name:      "fill_timeouts_total",
		Help:      "Orders left resting after the fill wait window",
	},
)

// RiskGateRefusals - срабатывания предохранителей по причинам
var RiskGateRefusals = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kalshibot",
		Subsystem: "risk",
		Name:      "gate_refusals_total",
		Help:      "Risk gate refusals by reason",
	},
	[]string{"reason"},
)

// ============ Реконсиляция ============

// ReconcileTransitions - переходы статусов позиций по типам
// (won, lost, cancelled, stale_cancelled)
var ReconcileTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kalshibot",
		Subsystem: "reconcile",
		Name:      "transitions_total",
		Help:      "Trade status transitions applied by reconciliation jobs",
	},
	[]string{"transition"},
)

// MarketsRefreshed - рыночные снапшоты, записанные cron-джобой обновления
var MarketsRefreshed = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "kalshibot",
		Subsystem: "ingest",
		Name:      "markets_refreshed_total",
		Help:      "Market snapshots upserted by the refresh job",
	},
)
