// Package marketdata supplies read-only market snapshots to the
// decision engine.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorumtrade/quorum/internal/contracts"
)

// Store reads snapshot inputs from Postgres. It implements
// contracts.MarketDataGateway directly; wrap it in CachedGateway to
// avoid repeated reads within a run.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres-backed snapshot store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FetchSnapshot assembles a snapshot from the prices, fundamentals,
// news_items and insider_trades tables. An instrument with no price
// history at all maps to ErrDataUnavailable; missing fundamentals or
// news just leave those sections empty.
func (s *Store) FetchSnapshot(ctx context.Context, instrument string, asOf time.Time, lookbackDays int) (*contracts.MarketSnapshot, error) {
	from := asOf.AddDate(0, 0, -lookbackDays)

	prices, err := s.fetchPrices(ctx, instrument, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch prices %s: %w", instrument, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: %s as of %s", contracts.ErrDataUnavailable, instrument, asOf.Format("2006-01-02"))
	}

	fundamentals, err := s.fetchFundamentals(ctx, instrument, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch fundamentals %s: %w", instrument, err)
	}

	news, err := s.fetchNews(ctx, instrument, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch news %s: %w", instrument, err)
	}

	trades, err := s.fetchInsiderTrades(ctx, instrument, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch insider trades %s: %w", instrument, err)
	}

	return &contracts.MarketSnapshot{
		Instrument:    instrument,
		AsOf:          asOf,
		LookbackDays:  lookbackDays,
		Prices:        prices,
		Fundamentals:  fundamentals,
		News:          news,
		InsiderTrades: trades,
	}, nil
}

func (s *Store) fetchPrices(ctx context.Context, instrument string, from, to time.Time) ([]contracts.PricePoint, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM prices
		WHERE instrument = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []contracts.PricePoint
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (s *Store) fetchFundamentals(ctx context.Context, instrument string, asOf time.Time) (*contracts.Fundamentals, error) {
	query := `
		SELECT roe, debt_ratio, net_margin, revenue_growth, per, pbr, psr, eps, reported_at
		FROM fundamentals
		WHERE instrument = $1 AND reported_at <= $2
		ORDER BY reported_at DESC
		LIMIT 1
	`

	rows, err := s.pool.Query(ctx, query, instrument, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var f contracts.Fundamentals
	if err := rows.Scan(&f.ROE, &f.DebtRatio, &f.NetMargin, &f.RevenueGrowth,
		&f.PER, &f.PBR, &f.PSR, &f.EPS, &f.ReportedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) fetchNews(ctx context.Context, instrument string, from, to time.Time) ([]contracts.NewsItem, error) {
	query := `
		SELECT headline, source, published_at
		FROM news_items
		WHERE instrument = $1 AND published_at BETWEEN $2 AND $3
		ORDER BY published_at DESC
		LIMIT 100
	`

	rows, err := s.pool.Query(ctx, query, instrument, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []contracts.NewsItem
	for rows.Next() {
		var n contracts.NewsItem
		if err := rows.Scan(&n.Headline, &n.Source, &n.PublishedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *Store) fetchInsiderTrades(ctx context.Context, instrument string, from, to time.Time) ([]contracts.InsiderTrade, error) {
	query := `
		SELECT insider, shares, price, traded_at
		FROM insider_trades
		WHERE instrument = $1 AND traded_at BETWEEN $2 AND $3
		ORDER BY traded_at DESC
		LIMIT 100
	`

	rows, err := s.pool.Query(ctx, query, instrument, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []contracts.InsiderTrade
	for rows.Next() {
		var t contracts.InsiderTrade
		if err := rows.Scan(&t.Insider, &t.Shares, &t.Price, &t.TradedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveNews upserts scraped headlines for later snapshot assembly
func (s *Store) SaveNews(ctx context.Context, instrument string, items []contracts.NewsItem) error {
	query := `
		INSERT INTO news_items (instrument, headline, source, published_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instrument, headline, published_at) DO NOTHING
	`

	for _, item := range items {
		if _, err := s.pool.Exec(ctx, query, instrument, item.Headline, item.Source, item.PublishedAt); err != nil {
			return fmt.Errorf("save news %s: %w", instrument, err)
		}
	}
	return nil
}
