package analysts

import (
	"fmt"
	"strings"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// SentimentAnalyst scores news flow and insider activity. Headlines
// are scored by keyword polarity; insider net buying tilts the score.
type SentimentAnalyst struct {
	logger *logger.Logger
}

// NewSentimentAnalyst creates a new sentiment analyst
func NewSentimentAnalyst(log *logger.Logger) *SentimentAnalyst {
	return &SentimentAnalyst{logger: log}
}

func (a *SentimentAnalyst) Name() string { return NameSentiment }

// MinLookback is 1: one news item or insider trade is enough to opine
func (a *SentimentAnalyst) MinLookback() int { return 1 }

// Evaluate scores the snapshot's news and insider trades
func (a *SentimentAnalyst) Evaluate(snapshot *contracts.MarketSnapshot) (*contracts.Signal, error) {
	if len(snapshot.News) == 0 && len(snapshot.InsiderTrades) == 0 {
		return nil, &contracts.InsufficientDataError{
			Analyst: a.Name(),
			Need:    a.MinLookback(),
			Got:     0,
		}
	}

	newsScore, scored := scoreHeadlines(snapshot.News)
	insiderScore := scoreInsiderTrades(snapshot.InsiderTrades)

	// News 70%, insider flow 30%; missing component yields its weight
	var score float64
	switch {
	case scored == 0:
		score = insiderScore
	case len(snapshot.InsiderTrades) == 0:
		score = newsScore
	default:
		score = newsScore*0.7 + insiderScore*0.3
	}
	score = clampUnit(score)

	a.logger.WithFields(map[string]interface{}{
		"instrument":    snapshot.Instrument,
		"headlines":     len(snapshot.News),
		"news_score":    newsScore,
		"insider_score": insiderScore,
		"score":         score,
	}).Debug("Calculated sentiment signal")

	rationale := fmt.Sprintf(
		"%d headlines scored %.2f, insider flow scored %.2f",
		len(snapshot.News), newsScore, insiderScore,
	)
	return signalFromScore(a.Name(), snapshot.Instrument, score, rationale), nil
}

var positiveWords = []string{
	"beat", "beats", "surge", "surges", "record", "upgrade", "upgraded",
	"growth", "profit", "strong", "buyback", "dividend", "wins", "rally",
	"outperform", "raises",
}

var negativeWords = []string{
	"miss", "misses", "plunge", "plunges", "downgrade", "downgraded",
	"loss", "losses", "weak", "lawsuit", "probe", "recall", "cuts",
	"layoff", "layoffs", "warning", "underperform", "fraud",
}

// scoreHeadlines returns a polarity score in [-1,1] and the number of
// headlines that matched any keyword.
func scoreHeadlines(news []contracts.NewsItem) (float64, int) {
	if len(news) == 0 {
		return 0, 0
	}

	var total float64
	var scored int
	for _, item := range news {
		headline := strings.ToLower(item.Headline)
		var polarity int
		for _, w := range positiveWords {
			if strings.Contains(headline, w) {
				polarity++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(headline, w) {
				polarity--
			}
		}
		if polarity != 0 {
			scored++
			if polarity > 0 {
				total++
			} else {
				total--
			}
		}
	}

	if scored == 0 {
		return 0, 0
	}
	return total / float64(len(news)), scored
}

// scoreInsiderTrades returns net insider buying as a fraction of total
// insider volume, in [-1,1].
func scoreInsiderTrades(trades []contracts.InsiderTrade) float64 {
	if len(trades) == 0 {
		return 0
	}

	var net, gross int64
	for _, t := range trades {
		net += t.Shares
		if t.Shares >= 0 {
			gross += t.Shares
		} else {
			gross += -t.Shares
		}
	}
	if gross == 0 {
		return 0
	}
	return float64(net) / float64(gross)
}
