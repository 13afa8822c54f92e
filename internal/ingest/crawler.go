package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/siamlabs/siam/internal/knowledge"
)

// CrawlerConfig bounds one crawl run.
type CrawlerConfig struct {
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
	MaxPages    int
	MaxDepth    int
}

// Crawler fetches documentation sites and extracts readable text into
// crawl-type documents. The crawl stays on the start URL's host and
// respects the configured delay between requests.
type Crawler struct {
	cfg    CrawlerConfig
	logger *slog.Logger
}

// NewCrawler creates a Crawler. Zero config fields get safe defaults.
func NewCrawler(cfg CrawlerConfig, logger *slog.Logger) *Crawler {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 200
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{cfg: cfg, logger: logger}
}

// Crawl walks the site at startURL and returns one document per page
// with extractable content. Pages that fail to fetch or yield no
// readable text are skipped, not fatal. Cancelling ctx stops new
// requests; pages already fetched are still returned.
func (c *Crawler) Crawl(ctx context.Context, startURL string) ([]Document, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("%w: invalid start URL %q", knowledge.ErrInvalidInput, startURL)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
		colly.MaxDepth(c.cfg.MaxDepth),
		colly.Async(true),
	)
	collector.SetRequestTimeout(c.cfg.Timeout)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.Parallelism,
		Delay:       c.cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configuring crawl limits: %w", err)
	}

	var (
		mu    sync.Mutex
		docs  []Document
		pages int
	)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		mu.Lock()
		over := pages >= c.cfg.MaxPages
		mu.Unlock()
		if over {
			r.Abort()
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Attr("href")
		if strings.HasPrefix(link, "#") || strings.HasPrefix(link, "mailto:") {
			return
		}
		// Errors here are expected: off-domain, visited, max depth.
		_ = e.Request.Visit(link)
	})

	collector.OnResponse(func(r *colly.Response) {
		if !strings.Contains(r.Headers.Get("Content-Type"), "text/html") {
			return
		}
		doc, ok := c.extract(r)
		if !ok {
			return
		}
		mu.Lock()
		if pages < c.cfg.MaxPages {
			docs = append(docs, doc)
			pages++
		}
		mu.Unlock()
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("crawl request failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := collector.Visit(start.String()); err != nil {
		return nil, fmt.Errorf("starting crawl of %q: %w", startURL, err)
	}
	collector.Wait()

	c.logger.Info("crawl finished", "start_url", startURL, "pages", len(docs))
	return docs, nil
}

// extract runs readability extraction over one fetched page.
func (c *Crawler) extract(r *colly.Response) (Document, bool) {
	pageURL := r.Request.URL
	article, err := readability.FromReader(bytes.NewReader(r.Body), pageURL)
	if err != nil {
		c.logger.Warn("unreadable page skipped", "url", pageURL.String(), "error", err)
		return Document{}, false
	}

	content := knowledge.SanitizeContent(article.TextContent)
	if content == "" {
		return Document{}, false
	}

	metadata := map[string]string{
		"url":           pageURL.String(),
		"canonical_url": knowledge.CanonicalURL(pageURL.String()),
	}
	if article.Title != "" {
		metadata["title"] = article.Title
	}

	return Document{
		SourceType: knowledge.SourceCrawl,
		SourceID:   pageURL.String(),
		Content:    content,
		Metadata:   metadata,
	}, true
}
