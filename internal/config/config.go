// Package config resolves run settings from built-in defaults, an optional
// ini file and command-line overrides, in that order.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"
	"github.com/go-ini/ini"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/report"
	"github.com/soyunomas/dupescan/internal/scanner"
)

// FileName is looked up under the XDG config directories.
const FileName = "dupescan/config.ini"

// Error reports a setting that could not be parsed or validated.
type Error struct {
	Field string
	Value string
	Err   error
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Settings is everything a run needs beyond the list of roots.
type Settings struct {
	Algorithm    hasher.Algorithm
	Format       report.Format
	Report       bool
	NumberFormat string
	Order        engine.Order
	Factor       engine.Factor

	Min       int64
	Max       *int64
	NoEmpty   bool
	MaxDepth  int
	HardLinks bool
	Regex     string
	Glob      string
	Excludes  []string

	Workers   int
	BatchSize int

	// Source is the config file that was applied, if any.
	Source string
}

func Defaults() *Settings {
	return &Settings{
		Algorithm:    hasher.Blake2b,
		Format:       report.Fdupes,
		NumberFormat: report.DefaultNumberFormat,
		Order:        engine.OrderArrival,
		Factor:       engine.DefaultFactor,
		BatchSize:    engine.DefaultBatchSize,
	}
}

// Load returns the defaults overlaid with the ini file at path. An empty
// path searches the XDG config directories; finding nothing there is not
// an error. An explicit path must exist.
func Load(path string) (*Settings, error) {
	s := Defaults()
	if path == "" {
		found, err := xdg.SearchConfigFile(FileName)
		if err != nil {
			return s, nil
		}
		path = found
	} else if _, err := os.Stat(path); err != nil {
		return nil, &Error{Field: "config", Value: path, Err: err}
	}

	// '#' and ';' are legal inside number formats, globs and regexes, so
	// only whole-line comments are recognised.
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, &Error{Field: "config", Value: path, Err: errors.Wrap(err, "failed to load config file")}
	}
	if err := s.apply(file); err != nil {
		return nil, err
	}
	s.Source = path
	return s, nil
}

// apply copies every recognised key into s. Unknown keys are ignored.
func (s *Settings) apply(file *ini.File) error {
	for _, section := range file.Sections() {
		for _, key := range section.Keys() {
			field := section.Name() + "." + key.Name()
			if _, known := setters[field]; !known {
				continue
			}
			if err := s.Set(field, key.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

var setters = map[string]func(s *Settings, v string) error{
	"hash.algorithm": func(s *Settings, v string) (err error) {
		s.Algorithm, err = hasher.ParseAlgorithm(v)
		return err
	},
	"output.format": func(s *Settings, v string) (err error) {
		s.Format, err = report.ParseFormat(v)
		return err
	},
	"output.report": func(s *Settings, v string) (err error) {
		s.Report, err = strconv.ParseBool(v)
		return err
	},
	"output.number_format": func(s *Settings, v string) error {
		if err := checkNumberFormat(v); err != nil {
			return err
		}
		s.NumberFormat = v
		return nil
	},
	"output.order": func(s *Settings, v string) (err error) {
		s.Order, err = engine.ParseOrder(v)
		return err
	},
	"output.rfactor": func(s *Settings, v string) (err error) {
		s.Factor, err = engine.ParseFactor(v)
		return err
	},
	"filter.min": func(s *Settings, v string) (err error) {
		s.Min, err = ParseSize(v)
		return err
	},
	"filter.max": func(s *Settings, v string) error {
		n, err := ParseSize(v)
		if err != nil {
			return err
		}
		s.Max = &n
		return nil
	},
	"filter.no_empty": func(s *Settings, v string) (err error) {
		s.NoEmpty, err = strconv.ParseBool(v)
		return err
	},
	"filter.max_depth": func(s *Settings, v string) (err error) {
		s.MaxDepth, err = parseCount(v)
		return err
	},
	"filter.hard_links": func(s *Settings, v string) (err error) {
		s.HardLinks, err = strconv.ParseBool(v)
		return err
	},
	"filter.regex": func(s *Settings, v string) error {
		s.Regex = v
		return nil
	},
	"filter.glob": func(s *Settings, v string) error {
		s.Glob = v
		return nil
	},
	"filter.exclude": func(s *Settings, v string) error {
		s.Excludes = s.Excludes[:0]
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				s.Excludes = append(s.Excludes, name)
			}
		}
		return nil
	},
	"performance.workers": func(s *Settings, v string) (err error) {
		s.Workers, err = parseCount(v)
		return err
	},
	"performance.batch_size": func(s *Settings, v string) (err error) {
		s.BatchSize, err = parseCount(v)
		return err
	},
}

// Set parses value into the setting named by field ("section.key").
func (s *Settings) Set(field, value string) error {
	set, ok := setters[field]
	if !ok {
		return &Error{Field: field, Value: value, Err: errors.New("unknown setting")}
	}
	if err := set(s, strings.TrimSpace(value)); err != nil {
		return &Error{Field: field, Value: value, Err: err}
	}
	return nil
}

// Validate checks the combinations that no single setter can.
func (s *Settings) Validate() error {
	lower, upper := s.Bounds()
	if upper < lower {
		return &Error{
			Field: "filter.max",
			Value: strconv.FormatInt(upper, 10),
			Err:   errors.Errorf("below the minimum size %d", lower),
		}
	}
	if s.Workers > engine.MaxWorkers {
		return &Error{
			Field: "performance.workers",
			Value: strconv.Itoa(s.Workers),
			Err:   errors.Errorf("must be at most %d", engine.MaxWorkers),
		}
	}
	if s.BatchSize > engine.MaxBatchSize {
		return &Error{
			Field: "performance.batch_size",
			Value: strconv.Itoa(s.BatchSize),
			Err:   errors.Errorf("must be at most %d", engine.MaxBatchSize),
		}
	}
	if _, err := scanner.NewFilter(afero.NewMemMapFs(), s.FilterConfig()); err != nil {
		return &Error{Field: "filter", Err: err}
	}
	return nil
}

// Bounds returns the effective inclusive size range.
func (s *Settings) Bounds() (int64, int64) {
	lower := s.Min
	if s.NoEmpty && lower < 1 {
		lower = 1
	}
	upper := scanner.Unbounded
	if s.Max != nil {
		upper = *s.Max
	}
	return lower, upper
}

func (s *Settings) FilterConfig() scanner.FilterConfig {
	lower, upper := s.Bounds()
	return scanner.FilterConfig{
		Min:       lower,
		Max:       &upper,
		Regex:     s.Regex,
		Glob:      s.Glob,
		HardLinks: s.HardLinks,
	}
}

// EngineOptions builds the runner options for the host filesystem.
func (s *Settings) EngineOptions(logger logrus.FieldLogger) engine.Options {
	return engine.Options{
		Logger:    logger,
		Algorithm: s.Algorithm,
		Workers:   s.Workers,
		BatchSize: s.BatchSize,
		Excludes:  s.Excludes,
		MaxDepth:  s.MaxDepth,
		Filter:    s.FilterConfig(),
		Order:     s.Order,
		Factor:    s.Factor,
	}
}

// Fields summarises the settings for a debug log entry.
func (s *Settings) Fields() logrus.Fields {
	lower, upper := s.Bounds()
	workers := s.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return logrus.Fields{
		"config":    s.Source,
		"algorithm": s.Algorithm.String(),
		"format":    s.Format.String(),
		"order":     s.Order.String(),
		"rfactor":   s.Factor.String(),
		"min":       lower,
		"max":       upper,
		"workers":   workers,
	}
}

// ParseSize accepts a byte count with an optional binary unit suffix,
// such as "512", "10KB", "1.5 GiB" or "4m".
func ParseSize(v string) (int64, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrap(err, "invalid size")
	}
	if n < 0 {
		return 0, errors.Errorf("negative size %d", n)
	}
	return n, nil
}

func parseCount(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrap(err, "not an integer")
	}
	if n < 0 {
		return 0, errors.Errorf("must not be negative")
	}
	return n, nil
}

// checkNumberFormat rejects patterns humanize would panic on.
func checkNumberFormat(pattern string) (err error) {
	if pattern == "" {
		return errors.New("empty pattern")
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("invalid number format: %v", r)
		}
	}()
	humanize.FormatInteger(pattern, 1234567)
	return nil
}
