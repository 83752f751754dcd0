package gdelt

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "http://data.gdeltproject.org/gdeltv2"

// The v2 export feed publishes one zipped tab-separated file per
// 15-minute interval, named by its UTC timestamp.
const exportInterval = 15 * time.Minute

// exportColumns is the field count of a v2 events row. Shorter rows are
// discarded.
const exportColumns = 61

// Field positions within an export row.
const (
	colGlobalEventID = 0
	colDate          = 1
	colActor1Code    = 5
	colActor1Name    = 6
	colActor2Code    = 15
	colActor2Name    = 16
	colEventCode     = 26
	colEventBaseCode = 27
	colEventRootCode = 28
	colQuadClass     = 29
	colGoldstein     = 30
	colNumMentions   = 31
	colNumSources    = 32
	colNumArticles   = 33
	colAvgTone       = 34
	colGeoType       = 51
	colGeoFullName   = 52
	colGeoCountry    = 53
	colGeoLat        = 56
	colGeoLong       = 57
	colDateAdded     = 59
	colSourceURL     = 60
)

// Client downloads and filters events from the v2 export feed.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom feed base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new export feed client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWindow downloads the last `days` days of export files and returns
// the events whose Actor1Code carries countryPrefix and whose EventCode is
// on the category allowlist.
func (c *Client) FetchWindow(ctx context.Context, days int, countryPrefix string) ([]Event, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	return c.FetchRange(ctx, start, end, countryPrefix)
}

// FetchRange downloads every export interval in [start, end] and filters
// rows the same way FetchWindow does. A missing interval (HTTP 404) is
// skipped; any other feed failure aborts the fetch.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, countryPrefix string) ([]Event, error) {
	start = start.UTC().Truncate(exportInterval)
	end = end.UTC().Truncate(exportInterval)
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end %s before start %s", end, start)
	}

	var (
		events   []Event
		fetched  int
		missing  int
		rowTotal int
	)

	for ts := start; !ts.After(end); ts = ts.Add(exportInterval) {
		rows, found, err := c.fetchInterval(ctx, ts, countryPrefix, &rowTotal)
		if err != nil {
			return nil, err
		}
		if !found {
			missing++
			continue
		}
		fetched++
		events = append(events, rows...)
	}

	slog.Info("export fetch complete",
		"files", fetched,
		"missing", missing,
		"rows", rowTotal,
		"matched", len(events))

	return events, nil
}

func (c *Client) fetchInterval(ctx context.Context, ts time.Time, countryPrefix string, rowTotal *int) ([]Event, bool, error) {
	url := fmt.Sprintf("%s/%s.export.CSV.zip", c.baseURL, ts.Format("20060102150405"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch export %s: %w", ts.Format("20060102150405"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("export interval not published", "timestamp", ts.Format("20060102150405"))
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("fetch export %s: unexpected status %d", ts.Format("20060102150405"), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read export %s: %w", ts.Format("20060102150405"), err)
	}

	events, rows, err := parseExportZip(body, countryPrefix)
	if err != nil {
		return nil, false, fmt.Errorf("parse export %s: %w", ts.Format("20060102150405"), err)
	}
	*rowTotal += rows

	return events, true, nil
}

func parseExportZip(data []byte, countryPrefix string) ([]Event, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("open zip: %w", err)
	}

	var events []Event
	var rows int
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, rows, fmt.Errorf("open %s: %w", f.Name, err)
		}
		evs, n, err := parseExportRows(rc, countryPrefix)
		rc.Close()
		if err != nil {
			return nil, rows, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		rows += n
		events = append(events, evs...)
	}
	return events, rows, nil
}

// parseExportRows scans tab-separated rows without csv quoting, since the
// feed never quotes fields but source URLs may contain quote characters.
func parseExportRows(r io.Reader, countryPrefix string) ([]Event, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var events []Event
	var rows int
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rows++

		fields := strings.Split(line, "\t")
		if len(fields) < exportColumns {
			continue
		}

		if countryPrefix != "" && !strings.HasPrefix(fields[colActor1Code], countryPrefix) {
			continue
		}
		category, ok := CategoryFor(fields[colEventCode])
		if !ok {
			continue
		}

		ev := rowToEvent(fields)
		ev.Category = category
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, rows, fmt.Errorf("scan rows: %w", err)
	}
	return events, rows, nil
}

func rowToEvent(fields []string) Event {
	goldstein, err := strconv.ParseFloat(fields[colGoldstein], 64)
	if err != nil {
		goldstein = 0
	}

	return Event{
		GlobalEventID: fields[colGlobalEventID],
		Date:          fields[colDate],
		Actor1Code:    fields[colActor1Code],
		Actor1Name:    fields[colActor1Name],
		Actor2Code:    fields[colActor2Code],
		Actor2Name:    fields[colActor2Name],
		EventCode:     fields[colEventCode],
		EventBaseCode: fields[colEventBaseCode],
		EventRootCode: fields[colEventRootCode],
		QuadClass:     fields[colQuadClass],
		Goldstein:     goldstein,
		NumMentions:   fields[colNumMentions],
		NumSources:    fields[colNumSources],
		NumArticles:   fields[colNumArticles],
		AvgTone:       fields[colAvgTone],
		GeoType:       fields[colGeoType],
		GeoFullName:   fields[colGeoFullName],
		GeoCountry:    fields[colGeoCountry],
		GeoLat:        fields[colGeoLat],
		GeoLong:       fields[colGeoLong],
		DateAdded:     fields[colDateAdded],
		SourceURL:     fields[colSourceURL],
	}
}
