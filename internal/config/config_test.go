package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/report"
	"github.com/soyunomas/dupescan/internal/scanner"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.Equal(t, hasher.Blake2b, s.Algorithm)
	assert.Equal(t, report.Fdupes, s.Format)
	assert.Equal(t, engine.OrderArrival, s.Order)
	assert.Equal(t, engine.DefaultFactor, s.Factor)
	assert.Equal(t, report.DefaultNumberFormat, s.NumberFormat)
	assert.False(t, s.Report)

	lower, upper := s.Bounds()
	assert.Equal(t, int64(0), lower)
	assert.Equal(t, scanner.Unbounded, upper)
	assert.NoError(t, s.Validate())
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"512", 512, false},
		{"10KB", 10 * 1024, false},
		{"10k", 10 * 1024, false},
		{"1.5 GB", 1536 * 1024 * 1024, false},
		{"4MiB", 4 * 1024 * 1024, false},
		{" 2m ", 2 * 1024 * 1024, false},
		{"-1", 0, true},
		{"ten", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[hash]
algorithm = xxh3

[output]
format = ldjson
report = true
number_format = #.###,
order = natural
rfactor = under:10

[filter]
min = 1KB
max = 2MB
max_depth = 3
hard_links = true
; full-line comments are still skipped
regex = ^IMG_[0-9]+#?
glob = *.jpg
exclude = .git, node_modules

[performance]
workers = 6
batch_size = 8

[unrelated]
anything = goes
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, s.Source)
	assert.Equal(t, hasher.XXH3, s.Algorithm)
	assert.Equal(t, report.LDJSON, s.Format)
	assert.True(t, s.Report)
	assert.Equal(t, "#.###,", s.NumberFormat)
	assert.Equal(t, engine.OrderNatural, s.Order)
	assert.Equal(t, engine.Factor{Op: engine.FactorUnder, N: 10}, s.Factor)
	assert.Equal(t, int64(1024), s.Min)
	require.NotNil(t, s.Max)
	assert.Equal(t, int64(2*1024*1024), *s.Max)
	assert.Equal(t, 3, s.MaxDepth)
	assert.True(t, s.HardLinks)
	assert.Equal(t, "*.jpg", s.Glob)
	assert.Equal(t, "^IMG_[0-9]+#?", s.Regex)
	assert.Equal(t, []string{".git", "node_modules"}, s.Excludes)
	assert.Equal(t, 6, s.Workers)
	assert.Equal(t, 8, s.BatchSize)
	assert.NoError(t, s.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "config", cerr.Field)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"hash.algorithm":         "[hash]\nalgorithm = crc32\n",
		"output.format":          "[output]\nformat = yaml\n",
		"output.number_format":   "[output]\nnumber_format = #,##.\n",
		"output.order":           "[output]\norder = random\n",
		"output.rfactor":         "[output]\nrfactor = many:2\n",
		"filter.min":             "[filter]\nmin = lots\n",
		"filter.max_depth":       "[filter]\nmax_depth = -2\n",
		"performance.workers":    "[performance]\nworkers = many\n",
		"performance.batch_size": "[performance]\nbatch_size = -1\n",
	}
	for field, body := range tests {
		t.Run(field, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			var cerr *Error
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, field, cerr.Field)
		})
	}
}

func TestSetOverridesFile(t *testing.T) {
	s, err := Load(writeConfig(t, "[hash]\nalgorithm = md5\n[filter]\nmin = 100\n"))
	require.NoError(t, err)

	require.NoError(t, s.Set("hash.algorithm", "sha256"))
	require.NoError(t, s.Set("filter.min", "0"))
	assert.Equal(t, hasher.SHA256, s.Algorithm)
	assert.Equal(t, int64(0), s.Min)

	err = s.Set("filter.nope", "1")
	assert.Error(t, err)
}

func TestNoEmptyRaisesMin(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Set("filter.no_empty", "true"))
	lower, _ := s.Bounds()
	assert.Equal(t, int64(1), lower)

	require.NoError(t, s.Set("filter.min", "10"))
	lower, _ = s.Bounds()
	assert.Equal(t, int64(10), lower)
	assert.Equal(t, int64(10), s.FilterConfig().Min)
}

func TestValidate(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Set("filter.min", "10"))
	require.NoError(t, s.Set("filter.max", "5"))
	var cerr *Error
	require.True(t, errors.As(s.Validate(), &cerr))
	assert.Equal(t, "filter.max", cerr.Field)

	s = Defaults()
	require.NoError(t, s.Set("filter.regex", "(unclosed"))
	assert.Error(t, s.Validate())

	s = Defaults()
	require.NoError(t, s.Set("filter.min", "10"))
	require.NoError(t, s.Set("filter.max", "10"))
	assert.NoError(t, s.Validate())

	for field, value := range map[string]string{
		"performance.batch_size": "1099511627776",
		"performance.workers":    "100000",
	} {
		s = Defaults()
		require.NoError(t, s.Set(field, value))
		require.True(t, errors.As(s.Validate(), &cerr), field)
		assert.Equal(t, field, cerr.Field)
	}
}

func TestEngineOptions(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Set("filter.max", "1KB"))
	require.NoError(t, s.Set("performance.workers", "3"))

	require.NoError(t, s.Set("output.rfactor", "equal:1"))

	opts := s.EngineOptions(nil)
	assert.Equal(t, engine.Factor{Op: engine.FactorEqual, N: 1}, opts.Factor)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, engine.DefaultBatchSize, opts.BatchSize)
	require.NotNil(t, opts.Filter.Max)
	assert.Equal(t, int64(1024), *opts.Filter.Max)
	assert.Equal(t, 3, s.Fields()["workers"])
}
