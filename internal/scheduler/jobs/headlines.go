package jobs

import (
	"context"
	"fmt"

	"github.com/quorumtrade/quorum/internal/external/headlines"
	"github.com/quorumtrade/quorum/internal/marketdata"
	"github.com/quorumtrade/quorum/pkg/logger"
	"github.com/quorumtrade/quorum/pkg/redis"
)

const headlinePages = 3

// HeadlineCollectionJob scrapes recent headlines for every instrument
// in the universe and stores them for the sentiment analyst.
type HeadlineCollectionJob struct {
	client   *headlines.Client
	store    *marketdata.Store
	limiter  *redis.RateLimiter // optional, shared across instances
	universe []string
	logger   *logger.Logger
}

// NewHeadlineCollectionJob creates the headline collection job.
// limiter may be nil when Redis is disabled.
func NewHeadlineCollectionJob(client *headlines.Client, store *marketdata.Store, limiter *redis.RateLimiter, universe []string, log *logger.Logger) *HeadlineCollectionJob {
	return &HeadlineCollectionJob{
		client:   client,
		store:    store,
		limiter:  limiter,
		universe: universe,
		logger:   log,
	}
}

// Name returns the job name.
func (j *HeadlineCollectionJob) Name() string {
	return "headline_collection"
}

// Schedule returns the cron schedule (weekdays at 20:00, before the decision run).
func (j *HeadlineCollectionJob) Schedule() string {
	return "0 0 20 * * 1-5"
}

// Run fetches and stores headlines for the whole universe. A failure on
// one instrument does not stop the others; the first error is returned
// at the end so the scheduler retries.
func (j *HeadlineCollectionJob) Run(ctx context.Context) error {
	j.logger.WithField("instruments", len(j.universe)).Info("Starting headline collection")

	var firstErr error
	collected := 0

	for _, instrument := range j.universe {
		if err := ctx.Err(); err != nil {
			return err
		}

		if j.limiter != nil {
			if err := j.limiter.Wait(ctx, redis.HeadlinesRateLimit); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		items, err := j.client.FetchHeadlines(ctx, instrument, headlinePages)
		if err != nil {
			j.logger.WithFields(map[string]interface{}{
				"instrument": instrument,
				"error":      err.Error(),
			}).Warn("Headline fetch failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch headlines %s: %w", instrument, err)
			}
			continue
		}

		if len(items) == 0 {
			continue
		}

		if err := j.store.SaveNews(ctx, instrument, items); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("save headlines %s: %w", instrument, err)
			}
			continue
		}
		collected += len(items)
	}

	j.logger.WithField("headlines", collected).Info("Headline collection completed")
	return firstErr
}
