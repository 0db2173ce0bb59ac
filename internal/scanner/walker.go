package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/soyunomas/dupescan/internal/entities"
)

// ChannelSize bounds how far enumeration may run ahead of its consumer.
const ChannelSize = 1024

// Config defines the traversal rules.
type Config struct {
	Fs       afero.Fs
	Logger   logrus.FieldLogger
	Excludes []string // directory names never descended into
	MaxDepth int      // 0 means unlimited; 1 keeps only files directly under a root
}

// Entry is one enumeration result: either a regular file path or a
// traversal failure for the path that could not be read.
type Entry struct {
	Path string
	Err  *entities.FileError
}

// FileScanner enumerates regular files below a set of roots.
//
// Symbolic links are never followed and never emitted: traversal uses
// Lstat, so a link to a directory is not descended into and a link to a
// file is skipped. The only exception is a root that is itself a link,
// which is resolved once so the caller's explicit choice is honored.
type FileScanner struct {
	cfg        Config
	fs         afero.Fs
	log        logrus.FieldLogger
	excludeMap map[string]struct{}
}

// New creates a scanner. A nil Fs means the host filesystem.
func New(cfg Config) *FileScanner {
	exMap := make(map[string]struct{}, len(cfg.Excludes))
	for _, e := range cfg.Excludes {
		exMap[e] = struct{}{}
	}

	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &FileScanner{
		cfg:        cfg,
		fs:         fsys,
		log:        log,
		excludeMap: exMap,
	}
}

// Walk lazily streams every regular file under roots. The channel is
// closed once all roots are exhausted or ctx is cancelled. The sequence is
// finite and cannot be restarted.
func (s *FileScanner) Walk(ctx context.Context, roots []string) <-chan Entry {
	out := make(chan Entry, ChannelSize)

	go func() {
		defer close(out)
		deduped := s.DedupeRoots(roots)
		keys := make(map[string]struct{}, len(deduped))
		for _, r := range deduped {
			keys[s.canonical(r)] = struct{}{}
		}
		for _, root := range deduped {
			if err := s.walkRoot(ctx, root, keys, out); err != nil {
				return
			}
		}
	}()

	return out
}

// walkRoot emits the files below root. Directories that are themselves
// roots are left to their own walk, so each is visited once and with its
// own depth and exclusion rules.
func (s *FileScanner) walkRoot(ctx context.Context, root string, roots map[string]struct{}, out chan<- Entry) error {
	key := s.canonical(root)
	walkFrom := root
	if info, err := lstat(s.fs, root); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if resolved, ok := s.resolve(root); ok {
			walkFrom = resolved
		}
	}

	s.log.WithField("root", root).Debug("walking root")

	return afero.Walk(s.fs, walkFrom, func(path string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(walkFrom, path)
		if relErr != nil {
			rel = "."
		}
		// paths keep the prefix the caller supplied, even through a linked root
		display := filepath.Join(root, rel)

		// Missing roots, unreadable directories and vanished entries are
		// reported and skipped; siblings are still visited.
		if err != nil {
			return send(ctx, out, Entry{
				Path: display,
				Err:  entities.NewFileError(entities.KindTraversal, display, err),
			})
		}

		if info.IsDir() {
			if path == walkFrom {
				return nil
			}
			if _, ok := roots[filepath.Join(key, rel)]; ok {
				return filepath.SkipDir
			}
			if _, ok := s.excludeMap[info.Name()]; ok {
				return filepath.SkipDir
			}
			if s.cfg.MaxDepth > 0 && depth(walkFrom, path) >= s.cfg.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		// a file named as a root of its own is emitted by that root
		if _, ok := roots[filepath.Join(key, rel)]; ok && path != walkFrom {
			return nil
		}

		return send(ctx, out, Entry{Path: display})
	})
}

func send(ctx context.Context, out chan<- Entry, e Entry) error {
	select {
	case out <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// depth counts the path components of path below root.
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// DedupeRoots collapses roots that name the same directory, keeping the
// first spelling seen. Nested roots survive; Walk skips them inside the
// enclosing root instead.
func (s *FileScanner) DedupeRoots(roots []string) []string {
	seen := make(map[string]struct{}, len(roots))
	var deduped []string
	for _, r := range roots {
		key := s.canonical(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, r)
	}
	return deduped
}

// canonical returns the identity used to compare roots. On the host
// filesystem symlinks are resolved; elsewhere the cleaned absolute path is used.
func (s *FileScanner) canonical(root string) string {
	if resolved, ok := s.resolve(root); ok {
		return resolved
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

func (s *FileScanner) resolve(root string) (string, bool) {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	return abs, true
}

func lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fsys.Stat(path)
}
