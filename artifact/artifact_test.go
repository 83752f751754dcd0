package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gdelt-stars/gdelt"
)

func sampleEvent() gdelt.Event {
	return gdelt.Event{
		GlobalEventID: "42",
		Date:          "20240101",
		Actor1Code:    "BRAGOV",
		Actor1Name:    "BRAZIL",
		EventCode:     "141",
		EventRootCode: "14",
		Goldstein:     -6.5,
		AvgTone:       "-3.2",
		GeoFullName:   "Sao Paulo, Sao Paulo, Brazil",
		SourceURL:     "https://example.com/news/1",
		Category:      "Protest & Dissent Events",
		Title:         "Protesters march, streets fill",
	}
}

func TestRoundTripEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	in := []gdelt.Event{sampleEvent()}

	if err := Write(path, Events, in); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out, err := Read(path, Events)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	got := out[0]
	if got.Title != in[0].Title {
		t.Errorf("Title = %q, want %q (comma must survive quoting)", got.Title, in[0].Title)
	}
	if got.Goldstein != -6.5 {
		t.Errorf("Goldstein = %v, want -6.5", got.Goldstein)
	}
	if got.Category != in[0].Category {
		t.Errorf("Category = %q, want %q", got.Category, in[0].Category)
	}
}

func TestRoundTripEnrichedOrdersEmbeddingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enriched.csv")

	// Twelve dimensions so embedding_10 and embedding_11 would sort
	// wrongly under lexicographic ordering.
	ev := sampleEvent()
	ev.Embedding = make([]float64, 12)
	for i := range ev.Embedding {
		ev.Embedding[i] = float64(i) / 10
	}
	ev.X, ev.Y = 0.25, 0.75

	if err := Write(path, Enriched, []gdelt.Event{ev}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out, err := Read(path, Enriched)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	got := out[0]
	if len(got.Embedding) != 12 {
		t.Fatalf("embedding length = %d, want 12", len(got.Embedding))
	}
	for i, v := range got.Embedding {
		if v != float64(i)/10 {
			t.Errorf("embedding[%d] = %v, want %v", i, v, float64(i)/10)
		}
	}
	if got.X != 0.25 || got.Y != 0.75 {
		t.Errorf("coords = (%v, %v), want (0.25, 0.75)", got.X, got.Y)
	}
}

func TestRoundTripClustered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clustered.csv")

	ev := sampleEvent()
	ev.Embedding = []float64{0.1, 0.2}
	ev.X, ev.Y = 0.5, 0.5
	ev.Cluster = 3
	ev.ClusterKeywords = "protest, march, strike"

	if err := Write(path, Clustered, []gdelt.Event{ev}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out, err := Read(path, Clustered)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if out[0].Cluster != 3 {
		t.Errorf("Cluster = %d, want 3", out[0].Cluster)
	}
	if out[0].ClusterKeywords != "protest, march, strike" {
		t.Errorf("ClusterKeywords = %q", out[0].ClusterKeywords)
	}
}

func TestReadMissingRequiredColumn(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		schema  Schema
		missing string
	}{
		{"events without url_title", "SOURCEURL\nhttps://x\n", Events, "url_title"},
		{"enriched without x_2d", "url_title,y_2d\nt,0.5\n", Enriched, "x_2d"},
		{"clustered without y_2d", "url_title,x_2d\nt,0.5\n", Clustered, "y_2d"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.csv")
			if err := os.WriteFile(path, []byte(tc.header), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := Read(path, tc.schema)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.missing) {
				t.Errorf("error %q does not name column %q", err, tc.missing)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.csv"), Events)
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestReadToleratesAbsentClusterColumns(t *testing.T) {
	// A clustered load only hard-requires coordinates; cluster columns
	// default when absent.
	path := filepath.Join(t.TempDir(), "coords.csv")
	content := "url_title,x_2d,y_2d\nsome title,0.1,0.9\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := Read(path, Clustered)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if out[0].Cluster != 0 || out[0].ClusterKeywords != "" {
		t.Errorf("got cluster=%d keywords=%q, want defaults", out[0].Cluster, out[0].ClusterKeywords)
	}
	if out[0].X != 0.1 || out[0].Y != 0.9 {
		t.Errorf("coords = (%v, %v)", out[0].X, out[0].Y)
	}
}

func TestReadHeaderOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := Write(path, Events, nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	out, err := Read(path, Events)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d events, want 0", len(out))
	}
}

func TestWriteRejectsRaggedEmbeddings(t *testing.T) {
	a := sampleEvent()
	a.Embedding = []float64{1, 2, 3}
	b := sampleEvent()
	b.Embedding = []float64{1, 2}

	err := Write(filepath.Join(t.TempDir(), "bad.csv"), Enriched, []gdelt.Event{a, b})
	if err == nil {
		t.Fatal("expected error for ragged embeddings, got nil")
	}
}

func TestWriteCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "events.csv")
	if err := Write(path, Events, []gdelt.Event{sampleEvent()}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact not created: %v", err)
	}
}

func TestReadBadCoordinateValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.csv")
	content := "url_title,x_2d,y_2d\ntitle,not-a-number,0.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(path, Enriched); err == nil {
		t.Fatal("expected error for unparseable coordinate, got nil")
	}
}
