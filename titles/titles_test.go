package titles

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gdelt-stars/gdelt"
	"gdelt-stars/storage"
)

func TestFetchTitle(t *testing.T) {
	htmlContent := `<!DOCTYPE html>
<html>
<head><title>Protests Erupt in Capital After Court Ruling</title></head>
<body>
<article>
<p>Thousands gathered in the capital on Tuesday.</p>
</article>
</body>
</html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("expected User-Agent header to be set")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(htmlContent))
	}))
	defer server.Close()

	c := NewClient(WithTimeout(5 * time.Second))
	ctx := context.Background()

	title, err := c.Fetch(ctx, server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if title != "Protests Erupt in Capital After Court Ruling" {
		t.Errorf("title = %q, want %q", title, "Protests Erupt in Capital After Court Ruling")
	}
}

func TestFetchEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(""))
	}))
	defer server.Close()

	c := NewClient()
	ctx := context.Background()

	_, err := c.Fetch(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error for page without a title")
	}
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient()
	ctx := context.Background()

	_, err := c.Fetch(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error for server error response")
	}
}

func TestFetchInvalidURL(t *testing.T) {
	c := NewClient()
	ctx := context.Background()

	_, err := c.Fetch(ctx, "not-a-valid-url")
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestFetchContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("<html><head><title>Late</title></head></html>"))
	}))
	defer server.Close()

	c := NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestEnrichSetsTitles(t *testing.T) {
	fetcher := &mockFetcher{titles: map[string]string{
		"https://example.com/a": "Title A",
		"https://example.com/b": "Title B",
	}}

	events := []gdelt.Event{
		{GlobalEventID: "1", SourceURL: "https://example.com/a"},
		{GlobalEventID: "2", SourceURL: "https://example.com/b"},
		{GlobalEventID: "3", SourceURL: "https://example.com/a"},
	}

	e := NewEnricher(fetcher, WithWorkers(2))
	if err := e.Enrich(context.Background(), events); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if events[0].Title != "Title A" {
		t.Errorf("event 1 title = %q, want %q", events[0].Title, "Title A")
	}
	if events[1].Title != "Title B" {
		t.Errorf("event 2 title = %q, want %q", events[1].Title, "Title B")
	}
	if events[2].Title != "Title A" {
		t.Errorf("event 3 title = %q, want %q", events[2].Title, "Title A")
	}

	// Shared URL should only be fetched once
	if got := fetcher.callCount("https://example.com/a"); got != 1 {
		t.Errorf("fetch count for shared URL = %d, want 1", got)
	}
}

func TestEnrichUsesCache(t *testing.T) {
	fetcher := &mockFetcher{titles: map[string]string{}}
	cache := &mockCache{titles: map[string]string{
		"https://example.com/cached": "Cached Title",
	}}

	events := []gdelt.Event{
		{GlobalEventID: "1", SourceURL: "https://example.com/cached"},
	}

	e := NewEnricher(fetcher, WithCache(cache))
	if err := e.Enrich(context.Background(), events); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if events[0].Title != "Cached Title" {
		t.Errorf("title = %q, want %q", events[0].Title, "Cached Title")
	}
	if got := fetcher.callCount("https://example.com/cached"); got != 0 {
		t.Errorf("fetch count for cached URL = %d, want 0", got)
	}
}

func TestEnrichCachesFetchedTitles(t *testing.T) {
	fetcher := &mockFetcher{titles: map[string]string{
		"https://example.com/a": "Title A",
	}}
	cache := &mockCache{}

	events := []gdelt.Event{
		{GlobalEventID: "1", SourceURL: "https://example.com/a"},
	}

	e := NewEnricher(fetcher, WithCache(cache))
	if err := e.Enrich(context.Background(), events); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if got := cache.get("https://example.com/a"); got != "Title A" {
		t.Errorf("cached title = %q, want %q", got, "Title A")
	}
}

func TestEnrichFailuresLeaveTitleEmpty(t *testing.T) {
	fetcher := &mockFetcher{titles: map[string]string{
		"https://example.com/good": "Good Title",
	}}
	cache := &mockCache{}

	events := []gdelt.Event{
		{GlobalEventID: "1", SourceURL: "https://example.com/good"},
		{GlobalEventID: "2", SourceURL: "https://example.com/broken"},
	}

	e := NewEnricher(fetcher, WithCache(cache))
	if err := e.Enrich(context.Background(), events); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if events[0].Title != "Good Title" {
		t.Errorf("good title = %q, want %q", events[0].Title, "Good Title")
	}
	if events[1].Title != "" {
		t.Errorf("failed title = %q, want empty", events[1].Title)
	}

	// Failures are not cached
	if got := cache.get("https://example.com/broken"); got != "" {
		t.Errorf("failed URL cached as %q, want nothing", got)
	}
}

func TestEnrichSkipsEventsWithoutURL(t *testing.T) {
	fetcher := &mockFetcher{titles: map[string]string{}}

	events := []gdelt.Event{
		{GlobalEventID: "1", SourceURL: ""},
	}

	e := NewEnricher(fetcher)
	if err := e.Enrich(context.Background(), events); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if events[0].Title != "" {
		t.Errorf("title = %q, want empty", events[0].Title)
	}
	if fetcher.totalCalls() != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.totalCalls())
	}
}

func TestEnrichContextCancelled(t *testing.T) {
	fetcher := &mockFetcher{titles: map[string]string{
		"https://example.com/a": "Title A",
	}}

	events := []gdelt.Event{
		{GlobalEventID: "1", SourceURL: "https://example.com/a"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEnricher(fetcher)
	if err := e.Enrich(ctx, events); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestEnrichNoEvents(t *testing.T) {
	fetcher := &mockFetcher{titles: map[string]string{}}

	e := NewEnricher(fetcher)
	if err := e.Enrich(context.Background(), nil); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
}

// Mock implementations

type mockFetcher struct {
	mu     sync.Mutex
	titles map[string]string
	calls  map[string]int
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[url]++
	title, ok := m.titles[url]
	if !ok {
		return "", fmt.Errorf("fetch failed")
	}
	return title, nil
}

func (m *mockFetcher) callCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

func (m *mockFetcher) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

type mockCache struct {
	mu     sync.Mutex
	titles map[string]string
}

func (m *mockCache) GetTitle(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	title, ok := m.titles[url]
	if !ok {
		return "", storage.ErrNotFound
	}
	return title, nil
}

func (m *mockCache) SaveTitle(ctx context.Context, url, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.titles == nil {
		m.titles = make(map[string]string)
	}
	m.titles[url] = title
	return nil
}

func (m *mockCache) get(url string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.titles[url]
}
