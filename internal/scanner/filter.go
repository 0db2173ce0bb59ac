package scanner

import (
	"math"
	"path/filepath"
	"regexp"

	glob "github.com/pachyderm/ohmyglob"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/soyunomas/dupescan/internal/entities"
)

// Unbounded is the default upper size bound.
const Unbounded int64 = math.MaxInt64

// FilterConfig holds the admission rules applied to each enumerated path.
type FilterConfig struct {
	Min       int64  // inclusive lower bound in bytes
	Max       *int64 // inclusive upper bound in bytes; nil means Unbounded
	Regex     string // matched against the file name
	Glob      string // matched against the file name
	HardLinks bool   // keep every path of a hard-linked file instead of the first
}

type nameMatcher interface {
	Match(string) bool
}

// Filter decides which enumerated paths reach the hasher. It performs a
// single Stat per path. It is not safe for concurrent use; the pipeline
// runs it on the dispatching goroutine only.
type Filter struct {
	fs    afero.Fs
	min   int64
	max   int64
	regex *regexp.Regexp
	glob  nameMatcher
	links bool
	seen  map[sysID]struct{}
}

type sysID struct {
	dev, inode uint64
}

// NewFilter compiles the name patterns. A nil fs means the host filesystem.
func NewFilter(fsys afero.Fs, cfg FilterConfig) (*Filter, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	upper := Unbounded
	if cfg.Max != nil {
		upper = *cfg.Max
	}
	if cfg.Min < 0 || upper < cfg.Min {
		return nil, errors.Errorf("invalid size range [%d, %d]", cfg.Min, upper)
	}

	f := &Filter{
		fs:    fsys,
		min:   cfg.Min,
		max:   upper,
		links: cfg.HardLinks,
		seen:  make(map[sysID]struct{}),
	}

	if cfg.Regex != "" {
		re, err := regexp.Compile(cfg.Regex)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid regex %q", cfg.Regex)
		}
		f.regex = re
	}
	if cfg.Glob != "" {
		g, err := glob.Compile(cfg.Glob, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid glob %q", cfg.Glob)
		}
		f.glob = g
	}

	return f, nil
}

// Bounds returns the effective inclusive size range.
func (f *Filter) Bounds() (int64, int64) {
	return f.min, f.max
}

// Admit stats path and reports whether it passes every rule. A stat
// failure means the file changed after enumeration: it is returned as a
// KindStatRace error and the file is dropped.
func (f *Filter) Admit(path string) (*entities.FileInfo, bool, error) {
	name := filepath.Base(path)
	if f.regex != nil && !f.regex.MatchString(name) {
		return nil, false, nil
	}
	if f.glob != nil && !f.glob.Match(name) {
		return nil, false, nil
	}

	info, err := f.fs.Stat(path)
	if err != nil {
		return nil, false, entities.NewFileError(entities.KindStatRace, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}

	size := info.Size()
	if size < f.min || size > f.max {
		return nil, false, nil
	}

	devID, inode, ok := getSysInfo(info)
	if ok && !f.links {
		id := sysID{devID, inode}
		if _, dup := f.seen[id]; dup {
			return nil, false, nil
		}
		f.seen[id] = struct{}{}
	}

	return &entities.FileInfo{
		Path:     path,
		Size:     size,
		DeviceID: devID,
		Inode:    inode,
	}, true, nil
}
