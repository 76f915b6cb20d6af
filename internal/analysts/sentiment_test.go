package analysts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

func TestSentiment_AbstainsWithoutNewsOrTrades(t *testing.T) {
	a := NewSentimentAnalyst(logger.NewNop())
	snapshot := trendSnapshot("AAPL", 60, 100, 0.5)

	_, err := a.Evaluate(snapshot)
	require.Error(t, err)
	assert.True(t, contracts.IsAbstention(err))
}

func TestSentiment_PositiveNewsIsBullish(t *testing.T) {
	a := NewSentimentAnalyst(logger.NewNop())
	snapshot := trendSnapshot("AAPL", 60, 100, 0.5)
	snapshot.News = []contracts.NewsItem{
		{Headline: "Quarterly results beat estimates on strong growth"},
		{Headline: "Board approves record buyback and raises dividend"},
	}

	sig, err := a.Evaluate(snapshot)
	require.NoError(t, err)
	assert.Equal(t, contracts.Bullish, sig.Direction)
}

func TestSentiment_NegativeNewsIsBearish(t *testing.T) {
	a := NewSentimentAnalyst(logger.NewNop())
	snapshot := trendSnapshot("AAPL", 60, 100, 0.5)
	snapshot.News = []contracts.NewsItem{
		{Headline: "Regulator opens probe into accounting practices"},
		{Headline: "Company warns of weak demand, announces layoffs"},
	}

	sig, err := a.Evaluate(snapshot)
	require.NoError(t, err)
	assert.Equal(t, contracts.Bearish, sig.Direction)
}

func TestSentiment_InsiderBuyingTiltsBullish(t *testing.T) {
	a := NewSentimentAnalyst(logger.NewNop())
	snapshot := trendSnapshot("AAPL", 60, 100, 0.5)
	snapshot.InsiderTrades = []contracts.InsiderTrade{
		{Insider: "CEO", Shares: 10000, Price: 100},
		{Insider: "CFO", Shares: 5000, Price: 101},
	}

	sig, err := a.Evaluate(snapshot)
	require.NoError(t, err)
	assert.Equal(t, contracts.Bullish, sig.Direction)
}

func TestScoreHeadlines_UnmatchedHeadlinesAreNeutral(t *testing.T) {
	score, scored := scoreHeadlines([]contracts.NewsItem{
		{Headline: "Company announces annual shareholder meeting date"},
	})
	assert.Equal(t, 0.0, score)
	assert.Equal(t, 0, scored)
}

func TestScoreInsiderTrades(t *testing.T) {
	// Pure selling reads fully negative
	score := scoreInsiderTrades([]contracts.InsiderTrade{
		{Shares: -1000}, {Shares: -500},
	})
	assert.Equal(t, -1.0, score)

	// Mixed flow nets out
	score = scoreInsiderTrades([]contracts.InsiderTrade{
		{Shares: 1000}, {Shares: -500},
	})
	assert.InDelta(t, 1.0/3.0, score, 1e-9)
}
