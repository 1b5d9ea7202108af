package repository

import (
	"database/sql"
	"errors"
	"time"

	"kalshibot/internal/models"
)

// Ошибки репозитория контрактов
var (
	ErrContractNotFound = errors.New("contract not found")
)

// ContractRepository - работа с таблицей contracts.
//
// Таблица служит кэшем рыночных снапшотов для сканера и реестром
// контрактов с открытыми позициями для реконсиляции.
type ContractRepository struct {
	db *sql.DB
}

// NewContractRepository создает новый экземпляр репозитория
func NewContractRepository(db *sql.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Upsert вставляет или обновляет снапшот контракта по market_id.
//
// discovered_at сохраняется от первой вставки, updated_at обновляется
// при каждом вызове. Используется cron-джобой обновления рынков
// и исполнителем (гарантия существования строки перед сделкой).
func (r *ContractRepository) Upsert(contract *models.Contract) error {
	query := `
		INSERT INTO contracts (market_id, question, category, yes_price, liquidity, volume, end_date, resolved, resolution, resolved_at, discovered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (market_id) DO UPDATE SET
			question = EXCLUDED.question,
			category = EXCLUDED.category,
			yes_price = EXCLUDED.yes_price,
			liquidity = EXCLUDED.liquidity,
			volume = EXCLUDED.volume,
			end_date = EXCLUDED.end_date,
			resolved = EXCLUDED.resolved,
			resolution = EXCLUDED.resolution,
			resolved_at = COALESCE(contracts.resolved_at, EXCLUDED.resolved_at),
			updated_at = EXCLUDED.updated_at
		RETURNING id, discovered_at`

	now := time.Now().UTC()

	err := r.db.QueryRow(
		query,
		contract.MarketID,
		contract.Question,
		contract.Category,
		contract.YesPrice,
		contract.Liquidity,
		contract.Volume,
		contract.EndDate,
		contract.Resolved,
		contract.Resolution,
		contract.ResolvedAt,
		now,
	).Scan(&contract.ID, &contract.DiscoveredAt)

	if err != nil {
		return err
	}

	contract.UpdatedAt = now
	return nil
}

// GetByMarketID возвращает контракт по тикеру рынка
func (r *ContractRepository) GetByMarketID(marketID string) (*models.Contract, error) {
	query := `
		SELECT id, market_id, question, category, yes_price, liquidity, volume, end_date, resolved, resolution, resolved_at, discovered_at, updated_at
		FROM contracts
		WHERE market_id = $1`

	contract := &models.Contract{}
	err := r.db.QueryRow(query, marketID).Scan(
		&contract.ID,
		&contract.MarketID,
		&contract.Question,
		&contract.Category,
		&contract.YesPrice,
		&contract.Liquidity,
		&contract.Volume,
		&contract.EndDate,
		&contract.Resolved,
		&contract.Resolution,
		&contract.ResolvedAt,
		&contract.DiscoveredAt,
		&contract.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}

	return contract, nil
}

// GetUnresolved возвращает все неразрешённые контракты из кэша.
// Вход сканера: фильтрация выполняется в памяти, не в SQL.
func (r *ContractRepository) GetUnresolved() ([]*models.Contract, error) {
	query := `
		SELECT id, market_id, question, category, yes_price, liquidity, volume, end_date, resolved, resolution, resolved_at, discovered_at, updated_at
		FROM contracts
		WHERE resolved = FALSE
		ORDER BY updated_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		contract := &models.Contract{}
		err := rows.Scan(
			&contract.ID,
			&contract.MarketID,
			&contract.Question,
			&contract.Category,
			&contract.YesPrice,
			&contract.Liquidity,
			&contract.Volume,
			&contract.EndDate,
			&contract.Resolved,
			&contract.Resolution,
			&contract.ResolvedAt,
			&contract.DiscoveredAt,
			&contract.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return contracts, nil
}

// MarkResolved помечает контракт разрешённым с указанным исходом
func (r *ContractRepository) MarkResolved(marketID, resolution string, resolvedAt time.Time) error {
	query := `
		UPDATE contracts
		SET resolved = TRUE, resolution = $1, resolved_at = COALESCE(resolved_at, $2), updated_at = $2
		WHERE market_id = $3`

	result, err := r.db.Exec(query, resolution, resolvedAt, marketID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrContractNotFound
	}

	return nil
}

// DeleteResolvedBefore удаляет разрешённые контракты старше cutoff.
//
// Для строк без resolved_at (разрешены до внедрения колонки)
// используется discovered_at как запасной критерий возраста.
func (r *ContractRepository) DeleteResolvedBefore(cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM contracts
		WHERE resolved = TRUE
		  AND (resolved_at < $1 OR (resolved_at IS NULL AND discovered_at < $1))`

	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество контрактов в кэше
func (r *ContractRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM contracts`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
