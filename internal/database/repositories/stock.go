package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// StockRepository is the modernc.org/sqlite-backed implementation of
// store.StockStore.
type StockRepository struct {
	BaseRepository
}

// NewStockRepository constructs a StockRepository.
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{BaseRepository: NewBase(db, log, "stock_repository")}
}

const stockColumns = `symbol, sector, price, pe, pb, roe, profit_margin, debt_to_equity,
	dividend_yield, dividend_growth_5yr, updated_at`

func scanStock(row interface{ Scan(...interface{}) error }) (domain.Stock, error) {
	var s domain.Stock
	if err := row.Scan(&s.Symbol, &s.Sector, &s.Price, &s.Fundamentals.PE, &s.Fundamentals.PB,
		&s.Fundamentals.ROE, &s.Fundamentals.ProfitMargin, &s.Fundamentals.DebtToEquity,
		&s.Fundamentals.DividendYield, &s.Fundamentals.DividendGrowth5Yr, &s.UpdatedAt); err != nil {
		return domain.Stock{}, err
	}
	return s, nil
}

func (r *StockRepository) GetStock(ctx context.Context, symbol string) (domain.Stock, error) {
	query := fmt.Sprintf("SELECT %s FROM stocks WHERE symbol = ?", stockColumns)
	row := r.DB().QueryRowContext(ctx, query, symbol)
	stock, err := scanStock(row)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("get stock %s: %w", symbol, err)
	}

	closes, err := r.GetPriceHistory(ctx, symbol, 400)
	if err != nil {
		return domain.Stock{}, err
	}
	stock.Closes = closes
	return stock, nil
}

func (r *StockRepository) ListStocks(ctx context.Context, symbols []string) ([]domain.Stock, error) {
	if len(symbols) == 0 {
		return r.listAllStocks(ctx)
	}

	placeholders := make([]string, len(symbols))
	args := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		placeholders[i] = "?"
		args[i] = sym
	}

	query := fmt.Sprintf("SELECT %s FROM stocks WHERE symbol IN (%s)", stockColumns, strings.Join(placeholders, ","))
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()
	return scanStockRows(rows)
}

func (r *StockRepository) listAllStocks(ctx context.Context) ([]domain.Stock, error) {
	query := fmt.Sprintf("SELECT %s FROM stocks", stockColumns)
	rows, err := r.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all stocks: %w", err)
	}
	defer rows.Close()
	return scanStockRows(rows)
}

func scanStockRows(rows *sql.Rows) ([]domain.Stock, error) {
	var out []domain.Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *StockRepository) UpsertStock(ctx context.Context, s domain.Stock) error {
	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO stocks (symbol, sector, price, pe, pb, roe, profit_margin, debt_to_equity, dividend_yield, dividend_growth_5yr, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			sector = excluded.sector, price = excluded.price, pe = excluded.pe, pb = excluded.pb,
			roe = excluded.roe, profit_margin = excluded.profit_margin, debt_to_equity = excluded.debt_to_equity,
			dividend_yield = excluded.dividend_yield, dividend_growth_5yr = excluded.dividend_growth_5yr,
			updated_at = CURRENT_TIMESTAMP`,
		s.Symbol, s.Sector, s.Price, s.Fundamentals.PE, s.Fundamentals.PB, s.Fundamentals.ROE,
		s.Fundamentals.ProfitMargin, s.Fundamentals.DebtToEquity, s.Fundamentals.DividendYield, s.Fundamentals.DividendGrowth5Yr)
	if err != nil {
		return fmt.Errorf("upsert stock %s: %w", s.Symbol, err)
	}
	return nil
}

func (r *StockRepository) GetPriceHistory(ctx context.Context, symbol string, maxDays int) ([]float64, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT close FROM (
			SELECT close, trade_date FROM price_history WHERE symbol = ? ORDER BY trade_date DESC LIMIT ?
		) ORDER BY trade_date ASC`, symbol, maxDays)
	if err != nil {
		return nil, fmt.Errorf("get price history for %s: %w", symbol, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan price history row for %s: %w", symbol, err)
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

func (r *StockRepository) GetSentimentHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.SentimentInput, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT news_score, social_score, combined_score, velocity FROM (
			SELECT news_score, social_score, combined_score, velocity, trade_date
			FROM sentiment_history WHERE symbol = ? ORDER BY trade_date DESC LIMIT ?
		) ORDER BY trade_date ASC`, symbol, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("get sentiment history for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []domain.SentimentInput
	for rows.Next() {
		var s domain.SentimentInput
		if err := rows.Scan(&s.News, &s.Social, &s.Combined, &s.Velocity); err != nil {
			return nil, fmt.Errorf("scan sentiment history row for %s: %w", symbol, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
