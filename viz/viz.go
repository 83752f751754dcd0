// Package viz renders clustered events as a self-contained interactive
// HTML star map.
package viz

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gdelt-stars/gdelt"
	"gdelt-stars/keywords"
)

const topKeywordCount = 5

// palette colors clusters and topic roots.
var palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#F7DC6F", "#BB8FCE", "#85C1E2", "#F8B88B", "#ABEBC6",
}

// rootNames labels CAMEO root codes in the topic legend.
var rootNames = map[string]string{
	"01": "Make public statement",
	"02": "Appeal",
	"03": "Express intent to cooperate",
	"04": "Consult",
	"05": "Engage in diplomatic cooperation",
	"06": "Engage in material cooperation",
	"07": "Provide aid",
	"08": "Yield",
	"09": "Investigate",
	"10": "Demand",
	"11": "Disapprove",
	"12": "Reject",
	"13": "Threaten",
	"14": "Protest",
	"15": "Exhibit force posture",
	"16": "Reduce relations",
	"17": "Coerce",
	"18": "Assault",
	"19": "Fight",
	"20": "Use unconventional mass violence",
}

// Point is one renderable star.
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Title     string  `json:"title"`
	Cluster   int     `json:"cluster"`
	Keywords  string  `json:"keywords"`
	Date      string  `json:"date"`
	URL       string  `json:"url"`
	Goldstein float64 `json:"goldstein"`
	Root      string  `json:"root"`
}

// BuildPoints flattens clustered events into visualization points, one
// per event.
func BuildPoints(events []gdelt.Event) []Point {
	points := make([]Point, len(events))
	for i, ev := range events {
		points[i] = Point{
			X:         ev.X,
			Y:         ev.Y,
			Title:     ev.Title,
			Cluster:   ev.Cluster,
			Keywords:  ev.ClusterKeywords,
			Date:      ev.Date,
			URL:       ev.SourceURL,
			Goldstein: ev.Goldstein,
			Root:      ev.RootCode(),
		}
	}
	return points
}

// DominantLocation returns the most frequent action location across
// events, keeping only the text after the last comma. Ties go to the
// location seen first.
func DominantLocation(events []gdelt.Event) string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, ev := range events {
		name := ev.GeoFullName
		if name == "" {
			continue
		}
		if _, ok := counts[name]; !ok {
			firstSeen[name] = i
		}
		counts[name]++
	}
	if len(counts) == 0 {
		return "Unknown"
	}

	best := ""
	bestCount := -1
	for name, n := range counts {
		if n > bestCount || (n == bestCount && firstSeen[name] < firstSeen[best]) {
			best = name
			bestCount = n
		}
	}

	if i := strings.LastIndex(best, ","); i >= 0 {
		best = strings.TrimSpace(best[i+1:])
	}
	return best
}

// TopKeywords returns the most frequent keywords across all event
// titles, comma separated.
func TopKeywords(events []gdelt.Event) string {
	var titles strings.Builder
	for _, ev := range events {
		if titles.Len() > 0 {
			titles.WriteByte(' ')
		}
		titles.WriteString(ev.Title)
	}
	return keywords.Label(titles.String(), topKeywordCount)
}

// Renderer writes the interactive star map document.
type Renderer struct{}

// NewRenderer creates a new HTML renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

type templateData struct {
	Points           template.JS
	Colors           template.JS
	RootNames        template.JS
	DominantLocation string
	TopKeywords      string
}

// Render writes the visualization document for the given events.
func (r *Renderer) Render(w io.Writer, events []gdelt.Event) error {
	points := BuildPoints(events)

	payload, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("marshal points: %w", err)
	}
	colors, err := json.Marshal(palette)
	if err != nil {
		return fmt.Errorf("marshal palette: %w", err)
	}
	roots, err := json.Marshal(rootNames)
	if err != nil {
		return fmt.Errorf("marshal root names: %w", err)
	}

	data := templateData{
		Points:           template.JS(payload),
		Colors:           template.JS(colors),
		RootNames:        template.JS(roots),
		DominantLocation: DominantLocation(events),
		TopKeywords:      TopKeywords(events),
	}
	return pageTemplate.Execute(w, data)
}

// RenderFile writes the visualization document to path, creating parent
// directories as needed.
func (r *Renderer) RenderFile(path string, events []gdelt.Event) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	if err := r.Render(f, events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	slog.Info("visualization written", "path", path, "points", len(events))
	return nil
}
