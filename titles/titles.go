// Package titles resolves source article page titles for events.
package titles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"

	"gdelt-stars/gdelt"
	"gdelt-stars/storage"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultWorkers   = 20
	progressInterval = 100
	userAgent        = "Mozilla/5.0 (compatible; GDELT-Stars/1.0)"
)

// Client fetches page titles over HTTP.
type Client struct {
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new title client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the page title for a URL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	// Validate URL
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	// Set a user agent to avoid being blocked
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		return "", fmt.Errorf("no title found")
	}

	return title, nil
}

// Fetcher fetches a page title for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Cache stores fetched titles between runs.
type Cache interface {
	GetTitle(ctx context.Context, url string) (string, error)
	SaveTitle(ctx context.Context, url, title string) error
}

// Enricher fills in event titles from their source URLs, fetching each
// unique URL once with a bounded worker pool. Failed lookups leave the
// title empty.
type Enricher struct {
	fetcher Fetcher
	cache   Cache
	workers int
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithWorkers sets the number of concurrent fetches.
func WithWorkers(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCache sets a title cache consulted before fetching. Only
// successful lookups are cached.
func WithCache(cache Cache) EnricherOption {
	return func(e *Enricher) {
		e.cache = cache
	}
}

// NewEnricher creates a new title enricher.
func NewEnricher(fetcher Fetcher, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		fetcher: fetcher,
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich sets the Title of every event whose source URL yields one.
func (e *Enricher) Enrich(ctx context.Context, events []gdelt.Event) error {
	// Group events by URL so each page is fetched once
	byURL := make(map[string][]int)
	for i, ev := range events {
		if ev.SourceURL == "" {
			continue
		}
		byURL[ev.SourceURL] = append(byURL[ev.SourceURL], i)
	}

	titles := make(map[string]string, len(byURL))
	pending := make([]string, 0, len(byURL))
	var cached int

	for u := range byURL {
		if e.cache != nil {
			title, err := e.cache.GetTitle(ctx, u)
			if err == nil {
				titles[u] = title
				cached++
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				slog.Warn("title cache lookup failed", "url", u, "error", err)
			}
		}
		pending = append(pending, u)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, e.workers)
		fetched int
		failed  int
	)

	for _, u := range pending {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			title, err := e.fetcher.Fetch(ctx, u)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				slog.Warn("title fetch failed", "url", u, "error", err)
			} else {
				titles[u] = title
				fetched++
				if e.cache != nil {
					if cerr := e.cache.SaveTitle(ctx, u, title); cerr != nil {
						slog.Warn("title cache write failed", "url", u, "error", cerr)
					}
				}
			}
			if done := cached + fetched + failed; done%progressInterval == 0 {
				slog.Info("title enrichment progress", "done", done, "total", len(byURL))
			}
		}(u)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for u, indices := range byURL {
		title, ok := titles[u]
		if !ok {
			continue
		}
		for _, i := range indices {
			events[i].Title = title
		}
	}

	slog.Info("title enrichment complete",
		"events", len(events),
		"unique_urls", len(byURL),
		"cached", cached,
		"fetched", fetched,
		"failed", failed)

	return nil
}
