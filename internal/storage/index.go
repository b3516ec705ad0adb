package storage

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex is returned when searching an index with no rows
	ErrEmptyIndex = errors.New("index is empty")
)

// Record is the metadata for one corpus row. Row i of the index corresponds to records[i].
type Record struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Index is a flat inner-product index. Vectors are expected to be unit length,
// so inner product equals cosine similarity. Rows are stored contiguously.
//
// An Index is not safe for concurrent Add; once built it is read-only and
// Search may be called from any number of goroutines.
type Index struct {
	dim  int
	data []float32
}

// NewIndex creates an empty index for vectors of the given dimension
func NewIndex(dim int) *Index {
	return &Index{dim: dim}
}

// Add appends vectors as new rows
func (x *Index) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("%w: row %d has %d, index has %d", ErrDimensionMismatch, x.Len()+i, len(v), x.dim)
		}
	}
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	return nil
}

// Len returns the number of rows
func (x *Index) Len() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.data) / x.dim
}

// Dimension returns the vector dimension
func (x *Index) Dimension() int {
	return x.dim
}

// Row returns the vector stored at row i. The slice aliases index storage and must not be modified.
func (x *Index) Row(i int) []float32 {
	return x.data[i*x.dim : (i+1)*x.dim]
}

// Search returns the k rows with the highest inner product against query, best
// first. Equal scores keep row order, so the first maximum encountered wins.
func (x *Index) Search(query []float32, k int) ([]float64, []int, error) {
	if len(query) != x.dim {
		return nil, nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}
	n := x.Len()
	if n == 0 {
		return nil, nil, ErrEmptyIndex
	}
	if k <= 0 || k > n {
		k = n
	}

	if k == 1 {
		bestRow := 0
		bestScore := innerProduct(query, x.Row(0))
		for i := 1; i < n; i++ {
			if s := innerProduct(query, x.Row(i)); s > bestScore {
				bestScore = s
				bestRow = i
			}
		}
		return []float64{bestScore}, []int{bestRow}, nil
	}

	candidates := make([]candidate, n)
	for i := 0; i < n; i++ {
		candidates[i] = candidate{row: i, score: innerProduct(query, x.Row(i))}
	}
	sortCandidates(candidates)

	scores := make([]float64, k)
	rows := make([]int, k)
	for i := 0; i < k; i++ {
		scores[i] = candidates[i].score
		rows[i] = candidates[i].row
	}
	return scores, rows, nil
}

// innerProduct accumulates in float64 to keep scores stable across save and load
func innerProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// candidate represents a row with its similarity score
type candidate struct {
	row   int
	score float64
}

// sortCandidates sorts by score descending, keeping row order for ties
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}
