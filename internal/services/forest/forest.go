// Package forest implements a bagged ensemble of CART regression trees.
//
// Fitting is deterministic for a given seed and does not depend on the
// order of the input examples: examples are sorted into a canonical order
// before bootstrap sampling, and tree i draws from its own PCG stream
// seeded with (seed, i).
package forest

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
)

const (
	DefaultEstimators = 100
	DefaultSeed       = 42
)

var (
	ErrNoExamples     = errors.New("forest: no training examples")
	ErrShapeMismatch  = errors.New("forest: inconsistent input shape")
	ErrNonFiniteInput = errors.New("forest: non-finite input value")
)

// Params controls ensemble fitting.
type Params struct {
	Estimators     int
	Seed           uint64
	MinSamplesLeaf int
	// MaxDepth <= 0 grows trees until leaves are pure.
	MaxDepth int
	// Workers bounds parallel tree fitting; <= 0 fits sequentially.
	Workers int
}

func DefaultParams() Params {
	return Params{Estimators: DefaultEstimators, Seed: DefaultSeed, MinSamplesLeaf: 1}
}

func (p Params) normalized() Params {
	if p.Estimators <= 0 {
		p.Estimators = DefaultEstimators
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// Node is one entry of a flattened tree. Feature is -1 for leaves.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is an immutable fitted ensemble.
type Forest struct {
	Features int    `json:"features"`
	Trees    []Tree `json:"trees"`
}

// Fit trains an ensemble on rows X with targets y.
func Fit(X [][]float64, y []float64, p Params) (*Forest, error) {
	if len(X) == 0 {
		return nil, ErrNoExamples
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: zero-width rows", ErrShapeMismatch)
	}
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), width)
		}
		for _, v := range row {
			if !finite(v) {
				return nil, fmt.Errorf("%w: row %d", ErrNonFiniteInput, i)
			}
		}
		if !finite(y[i]) {
			return nil, fmt.Errorf("%w: target %d", ErrNonFiniteInput, i)
		}
	}
	p = p.normalized()
	data := canonical(X, y)

	f := &Forest{Features: width, Trees: make([]Tree, p.Estimators)}
	fitOne := func(t int) {
		rng := rand.New(rand.NewPCG(p.Seed, uint64(t)))
		sample := make([]int, len(data))
		for i := range sample {
			sample[i] = rng.IntN(len(data))
		}
		b := builder{data: data, width: width, params: p}
		b.grow(sample, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}

	if p.Workers <= 1 {
		for t := 0; t < p.Estimators; t++ {
			fitOne(t)
		}
		return f, nil
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				fitOne(t)
			}
		}()
	}
	for t := 0; t < p.Estimators; t++ {
		jobs <- t
	}
	close(jobs)
	wg.Wait()
	return f, nil
}

// Predict averages the per-tree predictions for x.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != f.Features {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), f.Features)
	}
	if len(f.Trees) == 0 {
		return 0, ErrNoExamples
	}
	for _, v := range x {
		if !finite(v) {
			return 0, ErrNonFiniteInput
		}
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

func (f *Forest) NumFeatures() int { return f.Features }

// Validate checks the structural integrity of a decoded forest.
func (f *Forest) Validate() error {
	if f.Features <= 0 || len(f.Trees) == 0 {
		return fmt.Errorf("%w: empty forest", ErrShapeMismatch)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d has no nodes", ErrShapeMismatch, ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= f.Features || n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d is malformed", ErrShapeMismatch, ti, ni)
			}
		}
	}
	return nil
}

type example struct {
	x []float64
	y float64
}

// canonical copies the examples and sorts them lexicographically by
// features, then target.
func canonical(X [][]float64, y []float64) []example {
	out := make([]example, len(X))
	for i := range X {
		out[i] = example{x: slices.Clone(X[i]), y: y[i]}
	}
	slices.SortStableFunc(out, func(a, b example) int {
		if c := slices.Compare(a.x, b.x); c != 0 {
			return c
		}
		return cmp.Compare(a.y, b.y)
	})
	return out
}

type builder struct {
	data   []example
	width  int
	params Params
	nodes  []Node
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.mean(idx)})

	if len(idx) < 2*b.params.MinSamplesLeaf || b.pure(idx) {
		return at
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return at
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return at
	}
	var left, right []int
	for _, i := range idx {
		if b.data[i].x[feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: b.nodes[at].Value}
	return at
}

// bestSplit minimises the summed squared error of the two children. Ties
// keep the earliest (feature, position) candidate.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	bestSSE := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, n)
	for f := 0; f < b.width; f++ {
		copy(order, idx)
		slices.SortStableFunc(order, func(i, j int) int {
			if c := cmp.Compare(b.data[i].x[f], b.data[j].x[f]); c != 0 {
				return c
			}
			return cmp.Compare(i, j)
		})

		var totalSum, totalSq float64
		for _, i := range order {
			v := b.data[i].y
			totalSum += v
			totalSq += v * v
		}
		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := b.data[order[k]].y
			leftSum += v
			leftSq += v * v
			lo, hi := b.data[order[k]].x[f], b.data[order[k+1]].x[f]
			if lo == hi {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = midpoint(lo, hi)
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *builder) mean(idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += b.data[i].y
	}
	return s / float64(len(idx))
}

func (b *builder) pure(idx []int) bool {
	first := b.data[idx[0]].y
	for _, i := range idx[1:] {
		if b.data[i].y != first {
			return false
		}
	}
	return true
}

// midpoint returns a threshold t with lo <= t < hi.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
