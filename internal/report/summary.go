package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/soyunomas/dupescan/internal/engine"
)

// DefaultNumberFormat groups thousands with commas and prints no decimals.
const DefaultNumberFormat = "#,###."

// Summary is the human-readable account of a run, written to stderr.
type Summary struct {
	Scanned        int
	Unique         int
	Groups         int
	DuplicateFiles int
	DuplicateBytes int64
	UniqueBytes    int64
	Errors         map[string]int
	numberFormat   string
}

// NewSummary captures the totals of stats. An empty numberFormat selects
// DefaultNumberFormat.
func NewSummary(stats *engine.Stats, numberFormat string) *Summary {
	if numberFormat == "" {
		numberFormat = DefaultNumberFormat
	}
	s := &Summary{
		Scanned:        stats.FilesScanned(),
		Unique:         len(stats.Uniques),
		Groups:         len(stats.Duplicates),
		DuplicateFiles: stats.DuplicateFiles(),
		DuplicateBytes: stats.DuplicateBytes(),
		UniqueBytes:    stats.UniqueBytes(),
		Errors:         make(map[string]int, len(stats.Errors)),
		numberFormat:   numberFormat,
	}
	for kind, n := range stats.Errors {
		s.Errors[kind.String()] = n
	}
	return s
}

func (s *Summary) number(n int) string {
	return humanize.FormatInteger(s.numberFormat, n)
}

// WriteTo writes the summary lines to w.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var total int64
	write := func(format string, args ...interface{}) error {
		n, err := fmt.Fprintf(w, format, args...)
		total += int64(n)
		return err
	}

	if err := write("%s scanned files: %s unique files, %s groups of duplicate files (%s files)\n",
		s.number(s.Scanned), s.number(s.Unique), s.number(s.Groups), s.number(s.DuplicateFiles)); err != nil {
		return total, err
	}
	if err := write("%s in duplicate files, %s in unique files\n",
		humanize.IBytes(uint64(s.DuplicateBytes)), humanize.IBytes(uint64(s.UniqueBytes))); err != nil {
		return total, err
	}

	if len(s.Errors) == 0 {
		return total, nil
	}
	kinds := make([]string, 0, len(s.Errors))
	for k := range s.Errors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		if err := write("%s %s errors\n", s.number(s.Errors[k]), k); err != nil {
			return total, err
		}
	}
	return total, nil
}
