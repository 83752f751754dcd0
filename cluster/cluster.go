// Package cluster groups projected events with K-means and labels each
// group with its most frequent title keywords.
package cluster

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"gdelt-stars/gdelt"
	"gdelt-stars/keywords"
)

const (
	defaultClusters     = 10
	defaultRestarts     = 10
	defaultSeed         = 42
	defaultKeywordCount = 3
)

// observation wraps a 2D point with its event index so assignments can
// be mapped back after partitioning.
type observation struct {
	index  int
	coords clusters.Coordinates
}

func (o observation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o observation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Clusterer assigns events to K-means clusters by their 2D coordinates.
type Clusterer struct {
	k        int
	restarts int
	seed     int64
	keywords int
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithClusters sets the number of clusters.
func WithClusters(k int) Option {
	return func(c *Clusterer) {
		if k > 0 {
			c.k = k
		}
	}
}

// WithRestarts sets how many seeded runs to try, keeping the one with
// the lowest inertia.
func WithRestarts(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.restarts = n
		}
	}
}

// WithSeed sets the random seed so partitions are reproducible.
func WithSeed(seed int64) Option {
	return func(c *Clusterer) {
		c.seed = seed
	}
}

// WithKeywordCount sets how many keywords label each cluster.
func WithKeywordCount(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.keywords = n
		}
	}
}

// NewClusterer creates a new event clusterer.
func NewClusterer(opts ...Option) *Clusterer {
	c := &Clusterer{
		k:        defaultClusters,
		restarts: defaultRestarts,
		seed:     defaultSeed,
		keywords: defaultKeywordCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Assign labels every event with a cluster id in [0, k) and a keyword
// summary shared by its cluster. Events must already carry 2D
// coordinates. Assigning zero events is a no-op.
func (c *Clusterer) Assign(events []gdelt.Event) error {
	if len(events) == 0 {
		return nil
	}
	if len(events) < c.k {
		return fmt.Errorf("cannot form %d clusters from %d events", c.k, len(events))
	}

	obs := make(clusters.Observations, len(events))
	for i, ev := range events {
		obs[i] = observation{index: i, coords: clusters.Coordinates{ev.X, ev.Y}}
	}

	best, err := c.bestPartition(obs)
	if err != nil {
		return err
	}

	for id, cl := range best {
		var titles strings.Builder
		for _, o := range cl.Observations {
			idx := o.(observation).index
			events[idx].Cluster = id
			if titles.Len() > 0 {
				titles.WriteByte(' ')
			}
			titles.WriteString(events[idx].Title)
		}

		label := keywords.Label(titles.String(), c.keywords)
		for _, o := range cl.Observations {
			events[o.(observation).index].ClusterKeywords = label
		}
	}

	slog.Info("clustering complete", "events", len(events), "clusters", len(best))
	return nil
}

// bestPartition runs K-means once per restart and keeps the partition
// with the lowest inertia.
func (c *Clusterer) bestPartition(obs clusters.Observations) (clusters.Clusters, error) {
	var best clusters.Clusters
	bestInertia := math.Inf(1)

	for r := 0; r < c.restarts; r++ {
		// Center initialization draws from the global rand source
		rand.Seed(c.seed + int64(r))

		km := kmeans.New()
		result, err := km.Partition(obs, c.k)
		if err != nil {
			return nil, fmt.Errorf("partition events: %w", err)
		}

		if in := inertia(result); in < bestInertia {
			bestInertia = in
			best = result
		}
	}

	return best, nil
}

// inertia is the sum of squared distances from each observation to its
// cluster center.
func inertia(cs clusters.Clusters) float64 {
	var total float64
	for _, cl := range cs {
		for _, o := range cl.Observations {
			total += o.Distance(cl.Center)
		}
	}
	return total
}
