package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyunomas/dupescan/internal/entities"
)

func feed(paths ...string) <-chan *entities.FileInfo {
	ch := make(chan *entities.FileInfo, len(paths))
	for _, p := range paths {
		ch <- &entities.FileInfo{Path: p}
	}
	close(ch)
	return ch
}

func numbered(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("file-%03d", i)
	}
	return paths
}

func echoHash(_ context.Context, path string) (entities.Digest, error) {
	return entities.Digest("d:" + path), nil
}

func TestNewPoolDefaults(t *testing.T) {
	p := NewPool(0, 0)
	assert.Positive(t, p.Workers())
	assert.Equal(t, DefaultBatchSize, p.BatchSize())

	p = NewPool(3, 7)
	assert.Equal(t, 3, p.Workers())
	assert.Equal(t, 7, p.BatchSize())

	p = NewPool(math.MaxInt, math.MaxInt)
	assert.Equal(t, MaxWorkers, p.Workers())
	assert.Equal(t, MaxBatchSize, p.BatchSize())
}

func TestPoolHugeBatchSize(t *testing.T) {
	paths := numbered(50)
	var got []string
	for res := range NewPool(16, math.MaxInt).Run(context.Background(), feed(paths...), echoHash) {
		require.NoError(t, res.Err)
		got = append(got, res.File.Path)
	}
	sort.Strings(got)
	assert.Equal(t, paths, got)
}

func TestPoolDeliversEveryFile(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		batchSize int
		files     int
	}{
		{"single worker", 1, 1, 10},
		{"partial last batch", 4, 32, 100},
		{"batch larger than input", 8, 64, 5},
		{"no files", 4, 32, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := numbered(tt.files)
			var got []string
			for res := range NewPool(tt.workers, tt.batchSize).Run(context.Background(), feed(paths...), echoHash) {
				require.NoError(t, res.Err)
				assert.Equal(t, entities.Digest("d:"+res.File.Path), res.Digest)
				got = append(got, res.File.Path)
			}
			sort.Strings(got)
			if tt.files == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, paths, got)
		})
	}
}

func TestPoolSurvivesPerFileErrors(t *testing.T) {
	bad := errors.New("permission denied")
	hash := func(ctx context.Context, path string) (entities.Digest, error) {
		if path == "file-003" || path == "file-017" {
			return "", bad
		}
		return echoHash(ctx, path)
	}

	var ok, failed int
	for res := range NewPool(3, 4).Run(context.Background(), feed(numbered(40)...), hash) {
		if res.Err != nil {
			assert.ErrorIs(t, res.Err, bad)
			failed++
			continue
		}
		ok++
	}
	assert.Equal(t, 2, failed)
	assert.Equal(t, 38, ok)
}

func TestPoolRunsInParallel(t *testing.T) {
	var inFlight, peak int32
	hash := func(ctx context.Context, path string) (entities.Digest, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return echoHash(ctx, path)
	}

	for range NewPool(4, 1).Run(context.Background(), feed(numbered(16)...), hash) {
	}
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestPoolCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// an endless input stream: only cancellation can end the run
	files := make(chan *entities.FileInfo)
	go func() {
		for i := 0; ; i++ {
			select {
			case files <- &entities.FileInfo{Path: fmt.Sprint(i)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := NewPool(2, 4).Run(ctx, files, echoHash)
	<-results
	cancel()

	done := make(chan struct{})
	go func() {
		for range results {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("results channel was not closed after cancellation")
	}
}
