package embed

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/danaugrs/go-tsne/tsne"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultPerplexity   = 30
	defaultLearningRate = 200
	defaultIterations   = 1000
	defaultSeed         = 42
)

// Projector reduces embedding vectors to 2D with t-SNE and rescales
// each axis to [0, 1].
type Projector struct {
	perplexity   float64
	learningRate float64
	iterations   int
	seed         int64
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithPerplexity sets the t-SNE perplexity. It is clamped to n-1 for
// small inputs.
func WithPerplexity(p float64) ProjectorOption {
	return func(pr *Projector) {
		if p > 0 {
			pr.perplexity = p
		}
	}
}

// WithLearningRate sets the t-SNE learning rate.
func WithLearningRate(lr float64) ProjectorOption {
	return func(pr *Projector) {
		if lr > 0 {
			pr.learningRate = lr
		}
	}
}

// WithIterations sets the number of gradient descent iterations.
func WithIterations(n int) ProjectorOption {
	return func(pr *Projector) {
		if n > 0 {
			pr.iterations = n
		}
	}
}

// WithSeed sets the random seed so layouts are reproducible.
func WithSeed(seed int64) ProjectorOption {
	return func(pr *Projector) {
		pr.seed = seed
	}
}

// NewProjector creates a new 2D projector.
func NewProjector(opts ...ProjectorOption) *Projector {
	p := &Projector{
		perplexity:   defaultPerplexity,
		learningRate: defaultLearningRate,
		iterations:   defaultIterations,
		seed:         defaultSeed,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project returns one (x, y) pair in [0, 1] per input vector.
func (p *Projector) Project(vectors [][]float64) ([][2]float64, error) {
	n := len(vectors)
	if n == 0 {
		return nil, fmt.Errorf("no vectors to project")
	}
	if n == 1 {
		// t-SNE needs at least two points
		return [][2]float64{{0, 0}}, nil
	}

	dim := len(vectors[0])
	flat := make([]float64, 0, n*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), dim)
		}
		flat = append(flat, v...)
	}

	perplexity := p.perplexity
	if limit := float64(n - 1); perplexity > limit {
		perplexity = limit
	}

	slog.Info("projecting embeddings", "vectors", n, "dimensions", dim, "perplexity", perplexity)

	// The t-SNE implementation draws from the global rand source
	rand.Seed(p.seed)

	t := tsne.NewTSNE(2, perplexity, p.learningRate, p.iterations, false)
	result := t.EmbedData(mat.NewDense(n, dim, flat), nil)

	coords := make([][2]float64, n)
	for i := range coords {
		coords[i][0] = result.At(i, 0)
		coords[i][1] = result.At(i, 1)
	}
	rescale(coords)

	return coords, nil
}

// rescale maps each axis to [0, 1] independently. An axis with no
// spread collapses to 0.
func rescale(coords [][2]float64) {
	for axis := 0; axis < 2; axis++ {
		lo, hi := coords[0][axis], coords[0][axis]
		for _, c := range coords[1:] {
			if c[axis] < lo {
				lo = c[axis]
			}
			if c[axis] > hi {
				hi = c[axis]
			}
		}

		span := hi - lo
		for i := range coords {
			if span == 0 {
				coords[i][axis] = 0
			} else {
				coords[i][axis] = (coords[i][axis] - lo) / span
			}
		}
	}
}
