// Package headlines scrapes news headlines for snapshot assembly.
// The decision engine never calls this directly: scraped items land in
// the news_items table and reach analysts through market snapshots.
package headlines

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/httputil"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Client fetches and parses headline pages for an instrument
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a headlines client against the given base URL
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// FetchHeadlines scrapes recent headlines for one instrument, paging
// until maxPages or an empty page.
func (c *Client) FetchHeadlines(ctx context.Context, instrument string, maxPages int) ([]contracts.NewsItem, error) {
	if maxPages <= 0 {
		maxPages = 3
	}

	var items []contracts.NewsItem
	for page := 1; page <= maxPages; page++ {
		select {
		case <-ctx.Done():
			return items, ctx.Err()
		default:
		}

		pageURL := fmt.Sprintf("%s/news?symbol=%s&page=%d", c.baseURL, url.QueryEscape(instrument), page)
		pageItems, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return items, err
		}
		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
	}

	c.logger.WithFields(map[string]interface{}{
		"instrument": instrument,
		"count":      len(items),
	}).Debug("Fetched headlines")
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]contracts.NewsItem, error) {
	resp, err := c.httpClient.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch headlines page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("headlines page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse headlines page: %w", err)
	}

	return parseHeadlines(doc), nil
}

// parseHeadlines extracts items from the headline list markup:
// each article row carries a title link and a datetime attribute.
func parseHeadlines(doc *goquery.Document) []contracts.NewsItem {
	var items []contracts.NewsItem

	doc.Find("article.headline, li.headline").Each(func(i int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find("a.title").First().Text())
		if title == "" {
			title = strings.TrimSpace(row.Find("a").First().Text())
		}
		if title == "" {
			return
		}

		source := strings.TrimSpace(row.Find(".source").First().Text())

		var published time.Time
		if raw, ok := row.Find("time").First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				published = t
			}
		}

		items = append(items, contracts.NewsItem{
			Headline:    title,
			Source:      source,
			PublishedAt: published,
		})
	})

	return items
}
