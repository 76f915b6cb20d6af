package contracts

import "time"

// MarketSnapshot is the read-only market view handed to analysts.
// Built once per (instrument, run) by the market data gateway and
// never mutated afterwards.
type MarketSnapshot struct {
	Instrument   string         `json:"instrument"`
	AsOf         time.Time      `json:"as_of"`
	LookbackDays int            `json:"lookback_days"`
	Prices       []PricePoint   `json:"prices"` // ascending by date
	Fundamentals *Fundamentals  `json:"fundamentals,omitempty"`
	News         []NewsItem     `json:"news,omitempty"`
	InsiderTrades []InsiderTrade `json:"insider_trades,omitempty"`
}

// PricePoint represents one daily bar
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Fundamentals holds the latest reported fundamental metrics
type Fundamentals struct {
	ROE           float64   `json:"roe"`            // percent
	DebtRatio     float64   `json:"debt_ratio"`     // percent
	NetMargin     float64   `json:"net_margin"`     // percent
	RevenueGrowth float64   `json:"revenue_growth"` // percent, year over year
	PER           float64   `json:"per"`
	PBR           float64   `json:"pbr"`
	PSR           float64   `json:"psr"`
	EPS           float64   `json:"eps"`
	ReportedAt    time.Time `json:"reported_at"`
}

// NewsItem is one headline attached to the snapshot
type NewsItem struct {
	Headline    string    `json:"headline"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// InsiderTrade is one reported insider transaction.
// Positive Shares means a purchase, negative a sale.
type InsiderTrade struct {
	Insider  string    `json:"insider"`
	Shares   int64     `json:"shares"`
	Price    float64   `json:"price"`
	TradedAt time.Time `json:"traded_at"`
}

// LastClose returns the most recent closing price
func (s *MarketSnapshot) LastClose() (float64, bool) {
	if len(s.Prices) == 0 {
		return 0, false
	}
	return s.Prices[len(s.Prices)-1].Close, true
}

// PriceCount returns the number of price points in the lookback window
func (s *MarketSnapshot) PriceCount() int {
	return len(s.Prices)
}

// ReturnOver computes the simple return over the last n bars.
// Returns false when the window does not cover n bars.
func (s *MarketSnapshot) ReturnOver(n int) (float64, bool) {
	if n <= 0 || len(s.Prices) <= n {
		return 0, false
	}
	last := s.Prices[len(s.Prices)-1].Close
	base := s.Prices[len(s.Prices)-1-n].Close
	if base == 0 {
		return 0, false
	}
	return (last - base) / base, true
}
