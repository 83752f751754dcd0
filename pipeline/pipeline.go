// Package pipeline orchestrates the four stages that turn raw event
// downloads into the interactive star map: fetch, embed, cluster,
// visualize. Each stage reads and writes a CSV artifact so stages can
// be rerun independently.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gdelt-stars/artifact"
	"gdelt-stars/gdelt"
	"gdelt-stars/storage"
)

// EventSource fetches filtered events for a time window.
type EventSource interface {
	FetchWindow(ctx context.Context, days int, countryPrefix string) ([]gdelt.Event, error)
}

// TitleEnricher fills in event titles from their source URLs.
type TitleEnricher interface {
	Enrich(ctx context.Context, events []gdelt.Event) error
}

// Embedder turns titles into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Projector reduces embedding vectors to 2D coordinates.
type Projector interface {
	Project(vectors [][]float64) ([][2]float64, error)
}

// Clusterer labels events with cluster ids and keyword summaries.
type Clusterer interface {
	Assign(events []gdelt.Event) error
}

// Renderer writes the final visualization document.
type Renderer interface {
	RenderFile(path string, events []gdelt.Event) error
}

// RunStore records run history.
type RunStore interface {
	StartRun(ctx context.Context, startedAt time.Time) (string, error)
	FinishRun(ctx context.Context, id, status string, eventCount, clusterCount int, errText string) error
}

// RunSummary describes a finished pipeline run.
type RunSummary struct {
	Status       string
	EventCount   int
	ClusterCount int
	Duration     time.Duration
	OutputPath   string
	Err          string
}

// Notifier reports run outcomes.
type Notifier interface {
	NotifyRun(ctx context.Context, summary RunSummary) error
}

// Runner orchestrates the pipeline.
type Runner struct {
	source    EventSource
	titles    TitleEnricher
	embedder  Embedder
	projector Projector
	clusterer Clusterer
	renderer  Renderer

	runs     RunStore
	notifier Notifier
	confirm  func(plan string) bool

	lookbackDays  int
	countryPrefix string

	eventsPath    string
	enrichedPath  string
	clusteredPath string
	htmlPath      string

	now func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithRunStore records run history in the given store.
func WithRunStore(runs RunStore) Option {
	return func(r *Runner) {
		r.runs = runs
	}
}

// WithNotifier sends a notification when a run finishes.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithConfirm gates full runs behind a confirmation prompt. The
// function receives a plan description and returns whether to proceed.
func WithConfirm(confirm func(plan string) bool) Option {
	return func(r *Runner) {
		r.confirm = confirm
	}
}

// WithLookback sets how many days of events to fetch.
func WithLookback(days int) Option {
	return func(r *Runner) {
		if days > 0 {
			r.lookbackDays = days
		}
	}
}

// WithCountryPrefix sets the actor country filter.
func WithCountryPrefix(prefix string) Option {
	return func(r *Runner) {
		r.countryPrefix = prefix
	}
}

// WithPaths sets the artifact and output file locations.
func WithPaths(events, enriched, clustered, html string) Option {
	return func(r *Runner) {
		r.eventsPath = events
		r.enrichedPath = enriched
		r.clusteredPath = clustered
		r.htmlPath = html
	}
}

// NewRunner creates a new pipeline runner.
func NewRunner(
	source EventSource,
	titles TitleEnricher,
	embedder Embedder,
	projector Projector,
	clusterer Clusterer,
	renderer Renderer,
	opts ...Option,
) *Runner {
	r := &Runner{
		source:        source,
		titles:        titles,
		embedder:      embedder,
		projector:     projector,
		clusterer:     clusterer,
		renderer:      renderer,
		lookbackDays:  7,
		countryPrefix: "BR",
		eventsPath:    "data/events.csv",
		enrichedPath:  "data/events_enriched.csv",
		clusteredPath: "data/events_clustered.csv",
		htmlPath:      "docs/index.html",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the full pipeline and records the outcome.
func (r *Runner) Run(ctx context.Context) error {
	if r.confirm != nil && !r.confirm(r.describe()) {
		slog.Info("pipeline run cancelled")
		return nil
	}

	start := r.now()
	runID := r.startRun(ctx, start)

	slog.Info("starting pipeline run",
		"lookback_days", r.lookbackDays,
		"country_prefix", r.countryPrefix)

	events, err := r.Fetch(ctx)
	if err != nil {
		return r.fail(ctx, runID, start, "fetch", err)
	}

	if len(events) == 0 {
		slog.Info("no matching events in window, stopping early")
		r.finishRun(ctx, runID, storage.StatusEmpty, 0, 0, "")
		r.notify(ctx, RunSummary{
			Status:     storage.StatusEmpty,
			Duration:   r.now().Sub(start),
			OutputPath: r.htmlPath,
		})
		return nil
	}

	if err := r.embedEvents(ctx, events); err != nil {
		return r.fail(ctx, runID, start, "embed", err)
	}
	if err := artifact.Write(r.enrichedPath, artifact.Enriched, events); err != nil {
		return r.fail(ctx, runID, start, "embed", fmt.Errorf("write enriched artifact: %w", err))
	}

	if err := r.clusterer.Assign(events); err != nil {
		return r.fail(ctx, runID, start, "cluster", err)
	}
	if err := artifact.Write(r.clusteredPath, artifact.Clustered, events); err != nil {
		return r.fail(ctx, runID, start, "cluster", fmt.Errorf("write clustered artifact: %w", err))
	}

	if err := r.renderer.RenderFile(r.htmlPath, events); err != nil {
		return r.fail(ctx, runID, start, "visualize", err)
	}

	clusterCount := countClusters(events)
	duration := r.now().Sub(start)
	r.finishRun(ctx, runID, storage.StatusCompleted, len(events), clusterCount, "")
	r.notify(ctx, RunSummary{
		Status:       storage.StatusCompleted,
		EventCount:   len(events),
		ClusterCount: clusterCount,
		Duration:     duration,
		OutputPath:   r.htmlPath,
	})

	slog.Info("pipeline run complete",
		"events", len(events),
		"clusters", clusterCount,
		"duration", duration,
		"output", r.htmlPath)
	return nil
}

// Fetch downloads and filters events, enriches their titles, and
// writes the events artifact.
func (r *Runner) Fetch(ctx context.Context) ([]gdelt.Event, error) {
	events, err := r.source.FetchWindow(ctx, r.lookbackDays, r.countryPrefix)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	if len(events) > 0 {
		if err := r.titles.Enrich(ctx, events); err != nil {
			return nil, fmt.Errorf("enrich titles: %w", err)
		}
	}

	if err := artifact.Write(r.eventsPath, artifact.Events, events); err != nil {
		return nil, fmt.Errorf("write events artifact: %w", err)
	}
	return events, nil
}

// Embed reads the events artifact, computes embeddings and 2D
// coordinates, and writes the enriched artifact.
func (r *Runner) Embed(ctx context.Context) ([]gdelt.Event, error) {
	events, err := artifact.Read(r.eventsPath, artifact.Events)
	if err != nil {
		return nil, fmt.Errorf("read events artifact: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("events artifact %s has no rows", r.eventsPath)
	}

	if err := r.embedEvents(ctx, events); err != nil {
		return nil, err
	}

	if err := artifact.Write(r.enrichedPath, artifact.Enriched, events); err != nil {
		return nil, fmt.Errorf("write enriched artifact: %w", err)
	}
	return events, nil
}

// Cluster reads the enriched artifact, assigns clusters and keywords,
// and writes the clustered artifact.
func (r *Runner) Cluster() ([]gdelt.Event, error) {
	events, err := artifact.Read(r.enrichedPath, artifact.Enriched)
	if err != nil {
		return nil, fmt.Errorf("read enriched artifact: %w", err)
	}

	if err := r.clusterer.Assign(events); err != nil {
		return nil, fmt.Errorf("cluster events: %w", err)
	}

	if err := artifact.Write(r.clusteredPath, artifact.Clustered, events); err != nil {
		return nil, fmt.Errorf("write clustered artifact: %w", err)
	}
	return events, nil
}

// Visualize reads the clustered artifact and renders the final
// document. An empty artifact produces no output.
func (r *Runner) Visualize() error {
	events, err := artifact.Read(r.clusteredPath, artifact.Clustered)
	if err != nil {
		return fmt.Errorf("read clustered artifact: %w", err)
	}
	if len(events) == 0 {
		slog.Info("clustered artifact is empty, skipping visualization", "path", r.clusteredPath)
		return nil
	}

	if err := r.renderer.RenderFile(r.htmlPath, events); err != nil {
		return fmt.Errorf("render visualization: %w", err)
	}
	return nil
}

func (r *Runner) embedEvents(ctx context.Context, events []gdelt.Event) error {
	texts := make([]string, len(events))
	for i, ev := range events {
		texts[i] = ev.Title
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed titles: %w", err)
	}
	if len(vectors) != len(events) {
		return fmt.Errorf("got %d embeddings for %d events", len(vectors), len(events))
	}

	coords, err := r.projector.Project(vectors)
	if err != nil {
		return fmt.Errorf("project embeddings: %w", err)
	}

	for i := range events {
		events[i].Embedding = vectors[i]
		events[i].X = coords[i][0]
		events[i].Y = coords[i][1]
	}
	return nil
}

func (r *Runner) describe() string {
	return fmt.Sprintf("Fetch %d days of %s events, embed titles, cluster, and write %s",
		r.lookbackDays, r.countryPrefix, r.htmlPath)
}

func (r *Runner) fail(ctx context.Context, runID string, start time.Time, stage string, err error) error {
	wrapped := fmt.Errorf("%s stage: %w", stage, err)
	r.finishRun(ctx, runID, storage.StatusFailed, 0, 0, wrapped.Error())
	r.notify(ctx, RunSummary{
		Status:     storage.StatusFailed,
		Duration:   r.now().Sub(start),
		OutputPath: r.htmlPath,
		Err:        wrapped.Error(),
	})
	return wrapped
}

func (r *Runner) startRun(ctx context.Context, start time.Time) string {
	if r.runs == nil {
		return ""
	}
	id, err := r.runs.StartRun(ctx, start)
	if err != nil {
		slog.Warn("failed to record run start", "error", err)
		return ""
	}
	return id
}

func (r *Runner) finishRun(ctx context.Context, id, status string, eventCount, clusterCount int, errText string) {
	if r.runs == nil || id == "" {
		return
	}
	if err := r.runs.FinishRun(ctx, id, status, eventCount, clusterCount, errText); err != nil {
		slog.Warn("failed to record run finish", "error", err)
	}
}

func (r *Runner) notify(ctx context.Context, summary RunSummary) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyRun(ctx, summary); err != nil {
		slog.Warn("failed to send run notification", "error", err)
	}
}

func countClusters(events []gdelt.Event) int {
	seen := make(map[int]bool)
	for _, ev := range events {
		seen[ev.Cluster] = true
	}
	return len(seen)
}
