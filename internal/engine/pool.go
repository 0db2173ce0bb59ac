package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/soyunomas/dupescan/internal/entities"
)

// DefaultBatchSize is the number of files handed to a worker at once.
// Measured on trees dominated by small files, 32 keeps per-batch channel
// overhead below the read cost while leaving at most 31 files on a single
// worker at the tail of a scan.
const DefaultBatchSize = 32

// Upper bounds for pool sizing. Larger values are clamped.
const (
	MaxWorkers   = 1024
	MaxBatchSize = 1 << 16
)

// HashFunc digests the file at path. Implementations must honor ctx.
type HashFunc func(ctx context.Context, path string) (entities.Digest, error)

// Result is the outcome of hashing one file. Err is set when the file
// could not be read; Digest is meaningless in that case.
type Result struct {
	Digest entities.Digest
	File   *entities.FileInfo
	Err    error
}

// Pool runs a HashFunc over a stream of files on a fixed set of workers.
// Results are delivered in completion order, not input order.
type Pool struct {
	workers   int
	batchSize int
}

// NewPool creates a pool. Non-positive values select the defaults:
// runtime.NumCPU() workers and DefaultBatchSize. Values above MaxWorkers
// and MaxBatchSize are clamped.
func NewPool(workers, batchSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Pool{workers: workers, batchSize: batchSize}
}

func (p *Pool) Workers() int   { return p.workers }
func (p *Pool) BatchSize() int { return p.batchSize }

// Run consumes files until the channel closes and returns a channel of
// results that is closed once every worker has exited. On cancellation
// dispatch stops and in-flight batches are abandoned; the caller must
// still drain the returned channel.
func (p *Pool) Run(ctx context.Context, files <-chan *entities.FileInfo, hash HashFunc) <-chan Result {
	jobs := make(chan []*entities.FileInfo, p.workers)
	results := make(chan Result, p.workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		return p.dispatch(gctx, files, jobs)
	})

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for batch := range jobs {
				for _, f := range batch {
					if err := gctx.Err(); err != nil {
						return err
					}
					digest, err := hash(gctx, f.Path)
					select {
					case results <- Result{Digest: digest, File: f, Err: err}:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	return results
}

// dispatch groups incoming files into batches of batchSize. The final
// partial batch is flushed when files closes.
func (p *Pool) dispatch(ctx context.Context, files <-chan *entities.FileInfo, jobs chan<- []*entities.FileInfo) error {
	batch := make([]*entities.FileInfo, 0, p.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case jobs <- batch:
			batch = make([]*entities.FileInfo, 0, p.batchSize)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case f, ok := <-files:
			if !ok {
				return flush()
			}
			batch = append(batch, f)
			if len(batch) >= p.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
