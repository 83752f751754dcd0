// Package artifact reads and writes the tabular files handed between
// pipeline stages. Columns are matched by header name, extra columns are
// tolerated, and each stage level declares the columns it cannot work
// without.
package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gdelt-stars/gdelt"
)

// Schema identifies how far through the pipeline a file has travelled.
type Schema int

const (
	// Events is the fetch-stage output: GDELT columns plus category and
	// page title.
	Events Schema = iota
	// Enriched adds the embedding vector and 2D coordinates.
	Enriched
	// Clustered adds the cluster id and keyword label.
	Clustered
)

const (
	colURLTitle        = "url_title"
	colX               = "x_2d"
	colY               = "y_2d"
	colCluster         = "cluster"
	colClusterKeywords = "cluster_keywords"
	embeddingPrefix    = "embedding_"
)

var baseColumns = []string{
	"GLOBALEVENTID", "SQLDATE", "Actor1Code", "Actor1Name", "Actor2Code",
	"Actor2Name", "EventCode", "EventBaseCode", "EventRootCode",
	"QuadClass", "GoldsteinScale", "NumMentions", "NumSources",
	"NumArticles", "AvgTone", "ActionGeo_Type", "ActionGeo_FullName",
	"ActionGeo_CountryCode", "ActionGeo_Lat", "ActionGeo_Long",
	"DATEADDED", "SOURCEURL", "democracy_category", colURLTitle,
}

// requiredColumns lists what a stage loading files of the given schema
// validates before doing anything else.
var requiredColumns = map[Schema][]string{
	Events:    {colURLTitle},
	Enriched:  {colX, colY},
	Clustered: {colX, colY},
}

// Write persists events at the given schema level, creating parent
// directories as needed. All rows must carry embeddings of equal length
// when the schema includes them.
func Write(path string, schema Schema, events []gdelt.Event) error {
	dim := 0
	if schema >= Enriched && len(events) > 0 {
		dim = len(events[0].Embedding)
		for i, ev := range events {
			if len(ev.Embedding) != dim {
				return fmt.Errorf("row %d: embedding length %d, want %d", i, len(ev.Embedding), dim)
			}
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header(schema, dim)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range events {
		if err := w.Write(record(schema, dim, &events[i])); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush artifact: %w", err)
	}
	return f.Close()
}

// Read loads an artifact, failing fast when a column the schema requires
// is missing from the header.
func Read(path string, schema Schema) ([]gdelt.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("artifact %s has no header", path)
	}

	head := records[0]
	index := make(map[string]int, len(head))
	for i, name := range head {
		index[name] = i
	}

	for _, col := range requiredColumns[schema] {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("artifact %s is missing required column %q", path, col)
		}
	}

	embCols, err := embeddingColumns(head)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}

	events := make([]gdelt.Event, 0, len(records)-1)
	for rowNum, rec := range records[1:] {
		ev, err := recordToEvent(rec, index, embCols, schema)
		if err != nil {
			return nil, fmt.Errorf("artifact %s row %d: %w", path, rowNum+1, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func header(schema Schema, dim int) []string {
	cols := make([]string, 0, len(baseColumns)+dim+4)
	cols = append(cols, baseColumns...)
	if schema >= Enriched {
		for i := 0; i < dim; i++ {
			cols = append(cols, embeddingPrefix+strconv.Itoa(i))
		}
		cols = append(cols, colX, colY)
	}
	if schema >= Clustered {
		cols = append(cols, colCluster, colClusterKeywords)
	}
	return cols
}

func record(schema Schema, dim int, ev *gdelt.Event) []string {
	rec := make([]string, 0, len(baseColumns)+dim+4)
	rec = append(rec,
		ev.GlobalEventID, ev.Date, ev.Actor1Code, ev.Actor1Name,
		ev.Actor2Code, ev.Actor2Name, ev.EventCode, ev.EventBaseCode,
		ev.EventRootCode, ev.QuadClass, formatFloat(ev.Goldstein),
		ev.NumMentions, ev.NumSources, ev.NumArticles, ev.AvgTone,
		ev.GeoType, ev.GeoFullName, ev.GeoCountry, ev.GeoLat, ev.GeoLong,
		ev.DateAdded, ev.SourceURL, ev.Category, ev.Title,
	)
	if schema >= Enriched {
		for i := 0; i < dim; i++ {
			rec = append(rec, formatFloat(ev.Embedding[i]))
		}
		rec = append(rec, formatFloat(ev.X), formatFloat(ev.Y))
	}
	if schema >= Clustered {
		rec = append(rec, strconv.Itoa(ev.Cluster), ev.ClusterKeywords)
	}
	return rec
}

func recordToEvent(rec []string, index map[string]int, embCols []int, schema Schema) (gdelt.Event, error) {
	get := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	ev := gdelt.Event{
		GlobalEventID: get("GLOBALEVENTID"),
		Date:          get("SQLDATE"),
		Actor1Code:    get("Actor1Code"),
		Actor1Name:    get("Actor1Name"),
		Actor2Code:    get("Actor2Code"),
		Actor2Name:    get("Actor2Name"),
		EventCode:     get("EventCode"),
		EventBaseCode: get("EventBaseCode"),
		EventRootCode: get("EventRootCode"),
		QuadClass:     get("QuadClass"),
		NumMentions:   get("NumMentions"),
		NumSources:    get("NumSources"),
		NumArticles:   get("NumArticles"),
		AvgTone:       get("AvgTone"),
		GeoType:       get("ActionGeo_Type"),
		GeoFullName:   get("ActionGeo_FullName"),
		GeoCountry:    get("ActionGeo_CountryCode"),
		GeoLat:        get("ActionGeo_Lat"),
		GeoLong:       get("ActionGeo_Long"),
		DateAdded:     get("DATEADDED"),
		SourceURL:     get("SOURCEURL"),
		Category:      get("democracy_category"),
		Title:         get(colURLTitle),
	}

	// Tone is carried leniently; an unparseable or absent value renders
	// as neutral.
	if g, err := strconv.ParseFloat(get("GoldsteinScale"), 64); err == nil {
		ev.Goldstein = g
	}

	if schema >= Enriched {
		if len(embCols) > 0 {
			ev.Embedding = make([]float64, len(embCols))
			for i, col := range embCols {
				if col >= len(rec) {
					return ev, fmt.Errorf("embedding column %d out of range", i)
				}
				v, err := strconv.ParseFloat(rec[col], 64)
				if err != nil {
					return ev, fmt.Errorf("parse %s%d: %w", embeddingPrefix, i, err)
				}
				ev.Embedding[i] = v
			}
		}

		x, err := strconv.ParseFloat(get(colX), 64)
		if err != nil {
			return ev, fmt.Errorf("parse %s: %w", colX, err)
		}
		y, err := strconv.ParseFloat(get(colY), 64)
		if err != nil {
			return ev, fmt.Errorf("parse %s: %w", colY, err)
		}
		ev.X, ev.Y = x, y
	}

	if schema >= Clustered {
		if v := get(colCluster); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				return ev, fmt.Errorf("parse %s: %w", colCluster, err)
			}
			ev.Cluster = id
		}
		ev.ClusterKeywords = get(colClusterKeywords)
	}

	return ev, nil
}

// embeddingColumns returns the record positions of embedding_N headers
// ordered by N.
func embeddingColumns(head []string) ([]int, error) {
	byIndex := make(map[int]int)
	max := -1
	for pos, name := range head {
		if !strings.HasPrefix(name, embeddingPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, embeddingPrefix))
		if err != nil {
			return nil, fmt.Errorf("bad embedding column %q", name)
		}
		if _, dup := byIndex[n]; dup {
			return nil, fmt.Errorf("duplicate embedding column %q", name)
		}
		byIndex[n] = pos
		if n > max {
			max = n
		}
	}
	if len(byIndex) == 0 {
		return nil, nil
	}
	if len(byIndex) != max+1 {
		return nil, fmt.Errorf("embedding columns not contiguous: have %d, max index %d", len(byIndex), max)
	}

	cols := make([]int, max+1)
	for n, pos := range byIndex {
		cols[n] = pos
	}
	return cols, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
