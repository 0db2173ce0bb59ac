package engine

import (
	"github.com/soyunomas/dupescan/internal/entities"
)

// Accumulator merges hash results into buckets keyed by digest. It has a
// single owner: only the goroutine draining the pool's results may call
// Add, so the map needs no locking.
type Accumulator struct {
	index   map[entities.Digest]int
	buckets []*entities.Bucket
	files   int
	frozen  bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{index: make(map[entities.Digest]int)}
}

// Add appends f to the bucket for d, creating the bucket on first sight.
func (a *Accumulator) Add(d entities.Digest, f *entities.FileInfo) {
	if a.frozen {
		panic("engine: Add on frozen accumulator")
	}
	i, ok := a.index[d]
	if !ok {
		i = len(a.buckets)
		a.index[d] = i
		a.buckets = append(a.buckets, &entities.Bucket{Digest: d})
	}
	a.buckets[i].Add(f)
	a.files++
}

// Files returns the number of files accumulated so far.
func (a *Accumulator) Files() int {
	return a.files
}

// Buckets freezes the accumulator and returns its buckets in the order
// their digests were first seen.
func (a *Accumulator) Buckets() []entities.Bucket {
	a.frozen = true
	out := make([]entities.Bucket, len(a.buckets))
	for i, b := range a.buckets {
		out[i] = *b
	}
	return out
}
