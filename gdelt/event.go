package gdelt

// Event is a single filtered event row. The GDELT columns are carried as
// strings except GoldsteinScale, which downstream coloring needs as a
// number. Enrichment stages append to the trailing fields and never touch
// the fetched ones.
type Event struct {
	GlobalEventID string
	Date          string // SQLDATE, YYYYMMDD
	Actor1Code    string
	Actor1Name    string
	Actor2Code    string
	Actor2Name    string
	EventCode     string
	EventBaseCode string
	EventRootCode string
	QuadClass     string
	Goldstein     float64
	NumMentions   string
	NumSources    string
	NumArticles   string
	AvgTone       string
	GeoType       string
	GeoFullName   string
	GeoCountry    string
	GeoLat        string
	GeoLong       string
	DateAdded     string
	SourceURL     string

	// Set by the fetcher.
	Category string

	// Set by the title enricher. Empty means the title is unavailable.
	Title string

	// Set by the embedding enricher.
	Embedding []float64
	X         float64
	Y         float64

	// Set by the cluster labeler.
	Cluster         int
	ClusterKeywords string
}

// RootCode returns the two-character CAMEO root classifying the event,
// falling back to the event code prefix when the root column is empty.
func (e Event) RootCode() string {
	if e.EventRootCode != "" {
		return e.EventRootCode
	}
	if len(e.EventCode) >= 2 {
		return e.EventCode[:2]
	}
	return e.EventCode
}
