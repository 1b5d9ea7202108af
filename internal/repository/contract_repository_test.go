package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"kalshibot/internal/models"
)

// ============================================================
// ContractRepository Tests
// ============================================================

func TestNewContractRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewContractRepository(db)
	if repo == nil {
		t.Fatal("NewContractRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestContractRepositoryUpsert(t *testing.T) {
	now := time.Now()
	endDate := now.AddDate(0, 0, 2)

	tests := []struct {
		name        string
		contract    *models.Contract
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			contract: &models.Contract{
				MarketID:  "KXHIGHNY-25DEC31-B55",
				Question:  "Will the high in NYC exceed 55F?",
				Category:  "Climate",
				YesPrice:  0.93,
				Liquidity: 3200,
				Volume:    15000,
				EndDate:   &endDate,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO contracts`).
					WithArgs("KXHIGHNY-25DEC31-B55", "Will the high in NYC exceed 55F?", "Climate", 0.93, 3200.0, 15000.0, &endDate, false, (*string)(nil), (*time.Time)(nil), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id", "discovered_at"}).AddRow(1, now))
			},
			expectError: false,
		},
		{
			name: "database error",
			contract: &models.Contract{
				MarketID: "KXHIGHNY-25DEC31-B55",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO contracts`).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewContractRepository(db)
			err = repo.Upsert(tt.contract)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.contract.ID != 1 {
					t.Errorf("expected ID=1, got %d", tt.contract.ID)
				}
				if tt.contract.DiscoveredAt.IsZero() {
					t.Error("DiscoveredAt not populated")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestContractRepositoryGetByMarketID(t *testing.T) {
	now := time.Now()
	endDate := now.AddDate(0, 0, 1)

	tests := []struct {
		name        string
		marketID    string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name:     "success",
			marketID: "KXBTCZ-25SEP01-T110",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "market_id", "question", "category", "yes_price", "liquidity", "volume", "end_date", "resolved", "resolution", "resolved_at", "discovered_at", "updated_at"}).
					AddRow(1, "KXBTCZ-25SEP01-T110", "Bitcoin above 110k?", "Financials", 0.91, 2500.0, 8000.0, &endDate, false, nil, nil, now, now)
				mock.ExpectQuery(`SELECT .+ FROM contracts WHERE market_id = \$1`).
					WithArgs("KXBTCZ-25SEP01-T110").
					WillReturnRows(rows)
			},
			expectError: nil,
		},
		{
			name:     "not found",
			marketID: "UNKNOWN",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM contracts WHERE market_id = \$1`).
					WithArgs("UNKNOWN").
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrContractNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewContractRepository(db)
			result, err := repo.GetByMarketID(tt.marketID)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.MarketID != tt.marketID {
					t.Errorf("expected MarketID=%s, got %s", tt.marketID, result.MarketID)
				}
				if result.YesPrice != 0.91 {
					t.Errorf("expected YesPrice=0.91, got %f", result.YesPrice)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestContractRepositoryGetUnresolved(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "market_id", "question", "category", "yes_price", "liquidity", "volume", "end_date", "resolved", "resolution", "resolved_at", "discovered_at", "updated_at"}).
		AddRow(1, "KXA", "Question A?", "Politics", 0.90, 2500.0, 8000.0, nil, false, nil, nil, now, now).
		AddRow(2, "KXB", "Question B?", "Climate", 0.12, 4100.0, 9000.0, nil, false, nil, nil, now, now)
	mock.ExpectQuery(`SELECT .+ FROM contracts WHERE resolved = FALSE ORDER BY updated_at DESC`).
		WillReturnRows(rows)

	repo := NewContractRepository(db)
	result, err := repo.GetUnresolved()

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("expected 2 contracts, got %d", len(result))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContractRepositoryMarkResolved(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		marketID    string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name:     "success",
			marketID: "KXA",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE contracts SET resolved = TRUE`).
					WithArgs("yes", now, "KXA").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectError: nil,
		},
		{
			name:     "not found",
			marketID: "UNKNOWN",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE contracts SET resolved = TRUE`).
					WithArgs("yes", now, "UNKNOWN").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectError: ErrContractNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewContractRepository(db)
			err = repo.MarkResolved(tt.marketID, "yes", now)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestContractRepositoryDeleteResolvedBefore(t *testing.T) {
	cutoff := time.Now().AddDate(0, 0, -7)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM contracts WHERE resolved = TRUE`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	repo := NewContractRepository(db)
	deleted, err := repo.DeleteResolvedBefore(cutoff)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if deleted != 12 {
		t.Errorf("expected 12 deleted, got %d", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContractRepositoryCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"count"}).AddRow(340)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM contracts`).
		WillReturnRows(rows)

	repo := NewContractRepository(db)
	count, err := repo.Count()

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if count != 340 {
		t.Errorf("expected count=340, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
