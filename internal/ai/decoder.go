package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/shopspring/decimal"

	"kalshibot/internal/models"
	"kalshibot/pkg/utils"
)

// Ошибки декодера
var (
	ErrNoJSON          = errors.New("no JSON object in completion")
	ErrUnknownContract = errors.New("completion references unknown contract")
)

var fencedJSONRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// DecodeLimits задаёт границы, в которые вгоняется ответ модели.
type DecodeLimits struct {
	MinAllocation float64
	MaxAllocation float64
	MaxPositions  int
	Budget        float64 // дневной бюджет в долларах
}

// Схема ответа модели. Поля не из схемы игнорируются.
type rawPlan struct {
	SelectedContracts []rawSelection `json:"selected_contracts"`
	TotalAllocated    float64        `json:"total_allocated"`
	StrategyNotes     string         `json:"strategy_notes"`
}

type rawSelection struct {
	MarketID    string   `json:"market_id"`
	Allocation  float64  `json:"allocation"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	RiskFactors []string `json:"risk_factors"`
}

// extractJSON вырезает JSON-объект из текста ответа модели.
//
// Порядок попыток: блок в тройных кавычках, затем первый символ '{'
// до последнего '}', затем текст целиком.
func extractJSON(text string) (string, error) {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1], nil
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrNoJSON
	}
	return trimmed, nil
}

// DecodePlan превращает текст ответа модели в план аллокации.
//
// Модели регулярно ломают синтаксис JSON (лишние запятые, одинарные
// кавычки, оборванный хвост), поэтому после неудачного разбора текст
// прогоняется через jsonrepair и разбирается повторно.
//
// Каждая позиция привязывается к кандидату из запроса. Ссылка на
// неизвестный market_id означает галлюцинацию модели, и план целиком
// отбрасывается: исполнять такой ответ нельзя.
func DecodePlan(text string, candidates []models.Candidate, limits DecodeLimits) (*models.AllocationPlan, error) {
	jsonText, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(jsonText)
		if repairErr != nil {
			return nil, fmt.Errorf("parse completion JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return nil, fmt.Errorf("parse repaired completion JSON: %w", err)
		}
	}

	byMarketID := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		byMarketID[c.Contract.MarketID] = c
	}

	items := make([]models.AllocationItem, 0, len(raw.SelectedContracts))
	for _, sel := range raw.SelectedContracts {
		if sel.Allocation <= 0 {
			continue
		}

		candidate, ok := byMarketID[sel.MarketID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownContract, sel.MarketID)
		}

		reasoning := sel.Reasoning
		if reasoning == "" {
			reasoning = "No reasoning provided"
		}
		riskFactors := sel.RiskFactors
		if riskFactors == nil {
			riskFactors = []string{}
		}

		items = append(items, models.AllocationItem{
			Candidate:   candidate,
			Allocation:  utils.Clamp(sel.Allocation, limits.MinAllocation, limits.MaxAllocation),
			Confidence:  utils.Clamp(sel.Confidence, 0, 1),
			Reasoning:   reasoning,
			RiskFactors: riskFactors,
		})
	}

	if limits.MaxPositions > 0 && len(items) > limits.MaxPositions {
		items = items[:limits.MaxPositions]
	}

	items = scaleToBudget(items, limits.Budget)

	total := 0.0
	for _, item := range items {
		total += item.Allocation
	}

	notes := raw.StrategyNotes
	if notes == "" {
		notes = "No strategy notes"
	}

	return &models.AllocationPlan{
		Items:          items,
		TotalAllocated: total,
		StrategyNotes:  notes,
	}, nil
}

// scaleToBudget пропорционально ужимает аллокации, когда их сумма
// превышает бюджет.
//
// Денежная арифметика через decimal: каждая позиция округляется
// до цента, остаток от округления ложится на последнюю позицию,
// чтобы сумма сошлась с бюджетом точно. Последняя позиция не может
// уйти ниже нуля.
func scaleToBudget(items []models.AllocationItem, budget float64) []models.AllocationItem {
	if len(items) == 0 || budget <= 0 {
		return items
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Allocation))
	}

	budgetDec := decimal.NewFromFloat(budget)
	if total.LessThanOrEqual(budgetDec) {
		return items
	}

	factor := budgetDec.Div(total)
	remaining := budgetDec
	for i := range items {
		if i == len(items)-1 {
			if remaining.IsNegative() {
				remaining = decimal.Zero
			}
			items[i].Allocation = remaining.Round(2).InexactFloat64()
			break
		}
		scaled := decimal.NewFromFloat(items[i].Allocation).Mul(factor).Round(2)
		items[i].Allocation = scaled.InexactFloat64()
		remaining = remaining.Sub(scaled)
	}

	return items
}
