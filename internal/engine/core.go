package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/scanner"
)

type Options struct {
	Fs        afero.Fs
	Logger    logrus.FieldLogger
	Algorithm hasher.Algorithm
	Workers   int // 0 selects runtime.NumCPU()
	BatchSize int // 0 selects DefaultBatchSize
	Excludes  []string
	MaxDepth  int
	Filter    scanner.FilterConfig
	Order     Order
	Factor    Factor // selects Stats.Replicates; zero means DefaultFactor
}

// Stats is the partitioned outcome of a run.
type Stats struct {
	Duplicates []entities.Bucket
	Uniques    []entities.Bucket
	// Replicates are the buckets chosen by Options.Factor, for output.
	Replicates []entities.Bucket
	Errors     map[entities.ErrorKind]int
	Duration   time.Duration
}

// DuplicateFiles counts every file that belongs to a duplicate group.
func (s *Stats) DuplicateFiles() int {
	n := 0
	for i := range s.Duplicates {
		n += s.Duplicates[i].Len()
	}
	return n
}

// FilesScanned is the number of files that were filtered in and hashed.
func (s *Stats) FilesScanned() int {
	return len(s.Uniques) + s.DuplicateFiles()
}

func (s *Stats) DuplicateBytes() int64 {
	var total int64
	for i := range s.Duplicates {
		total += s.Duplicates[i].Bytes()
	}
	return total
}

func (s *Stats) UniqueBytes() int64 {
	var total int64
	for i := range s.Uniques {
		total += s.Uniques[i].Bytes()
	}
	return total
}

// ErrorCount sums recoverable errors across all kinds.
func (s *Stats) ErrorCount() int {
	n := 0
	for _, c := range s.Errors {
		n += c
	}
	return n
}

// DuplicateGroups returns the paths of every duplicate group.
func (s *Stats) DuplicateGroups() [][]string {
	return bucketPaths(s.Duplicates)
}

// ReplicateGroups returns the paths of every bucket the factor selected.
func (s *Stats) ReplicateGroups() [][]string {
	return bucketPaths(s.Replicates)
}

func bucketPaths(buckets []entities.Bucket) [][]string {
	groups := make([][]string, len(buckets))
	for i := range buckets {
		groups[i] = buckets[i].Paths()
	}
	return groups
}

type Runner struct {
	opts Options
	log  logrus.FieldLogger
}

func New(opts Options) *Runner {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{opts: opts, log: log}
}

// errorTally records recoverable failures from the enumerating goroutine
// and the result consumer.
type errorTally struct {
	mu     sync.Mutex
	log    logrus.FieldLogger
	counts map[entities.ErrorKind]int
}

func (t *errorTally) record(fe *entities.FileError) {
	t.log.WithFields(logrus.Fields{
		"kind": fe.Kind.String(),
		"path": fe.Path,
	}).Warn(fe.Err)

	t.mu.Lock()
	t.counts[fe.Kind]++
	t.mu.Unlock()
}

func (t *errorTally) snapshot() map[entities.ErrorKind]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[entities.ErrorKind]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Run scans roots, hashes every admitted file and partitions the result.
// Per-file failures are logged and counted, never fatal. If ctx is
// cancelled Run returns ctx.Err() and no Stats.
func (r *Runner) Run(ctx context.Context, roots []string) (*Stats, error) {
	start := time.Now()

	filter, err := scanner.NewFilter(r.opts.Fs, r.opts.Filter)
	if err != nil {
		return nil, errors.Wrap(err, "invalid filter")
	}
	sc := scanner.New(scanner.Config{
		Fs:       r.opts.Fs,
		Logger:   r.log,
		Excludes: r.opts.Excludes,
		MaxDepth: r.opts.MaxDepth,
	})
	h := hasher.New(r.opts.Fs, r.opts.Algorithm)
	pool := NewPool(r.opts.Workers, r.opts.BatchSize)

	minSize, maxSize := filter.Bounds()
	r.log.WithFields(logrus.Fields{
		"roots":      roots,
		"algorithm":  h.Algorithm().String(),
		"digest_len": h.Algorithm().Size(),
		"factor":     r.opts.Factor.String(),
		"workers":    pool.Workers(),
		"batch_size": pool.BatchSize(),
		"min_size":   minSize,
		"max_size":   maxSize,
	}).Debug("settings")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tally := &errorTally{log: r.log, counts: make(map[entities.ErrorKind]int)}

	// Enumeration and filtering run in order on one goroutine, feeding the
	// pool lazily so the full file list is never materialized.
	files := make(chan *entities.FileInfo, scanner.ChannelSize)
	go func() {
		defer close(files)
		for entry := range sc.Walk(ctx, roots) {
			if entry.Err != nil {
				tally.record(entry.Err)
				continue
			}
			info, ok, err := filter.Admit(entry.Path)
			if err != nil {
				tally.record(asFileError(entities.KindStatRace, entry.Path, err))
				continue
			}
			if !ok {
				continue
			}
			select {
			case files <- info:
			case <-ctx.Done():
				return
			}
		}
	}()

	acc := NewAccumulator()
	for res := range pool.Run(ctx, files, h.HashFile) {
		if res.Err != nil {
			if ctx.Err() != nil {
				continue
			}
			tally.record(asFileError(entities.KindHashRead, res.File.Path, res.Err))
			continue
		}
		acc.Add(res.Digest, res.File)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buckets := acc.Buckets()
	duplicates, uniques := Partition(buckets, IsDuplicate)
	replicates, _ := Partition(buckets, r.opts.Factor.Match)
	sortGroups(duplicates, r.opts.Order)
	sortGroups(replicates, r.opts.Order)

	stats := &Stats{
		Duplicates: duplicates,
		Uniques:    uniques,
		Replicates: replicates,
		Errors:     tally.snapshot(),
		Duration:   time.Since(start),
	}

	r.log.WithFields(logrus.Fields{
		"hashed":           acc.Files(),
		"scanned":          stats.FilesScanned(),
		"unique":           len(stats.Uniques),
		"duplicate_groups": len(stats.Duplicates),
		"duplicate_files":  stats.DuplicateFiles(),
		"errors":           stats.ErrorCount(),
		"duration":         stats.Duration.String(),
	}).Debug("scan finished")

	return stats, nil
}

func asFileError(kind entities.ErrorKind, path string, err error) *entities.FileError {
	var fe *entities.FileError
	if errors.As(err, &fe) {
		return fe
	}
	return entities.NewFileError(kind, path, err)
}
