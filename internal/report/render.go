package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Format selects how duplicate groups are written to stdout.
type Format int

const (
	Fdupes Format = iota
	JSON
	JSONPretty
	LDJSON
	Machine
	CSV
	numFormats
)

var formatNames = [numFormats]string{
	Fdupes:     "fdupes",
	JSON:       "json",
	JSONPretty: "json_pretty",
	LDJSON:     "ldjson",
	Machine:    "machine",
	CSV:        "csv",
}

func (f Format) String() string {
	if f < 0 || f >= numFormats {
		return "unknown"
	}
	return formatNames[f]
}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range formatNames {
		if n == name {
			return Format(i), nil
		}
	}
	return 0, errors.Errorf("unknown format %q (want one of %s)", name, strings.Join(Formats(), ", "))
}

// Formats lists every accepted format name.
func Formats() []string {
	return append([]string(nil), formatNames[:]...)
}

// Render writes groups to w in the given format. Every format except
// fdupes is well formed for zero groups.
func Render(w io.Writer, format Format, groups [][]string) error {
	bw := bufio.NewWriter(w)
	var err error
	switch format {
	case Fdupes:
		err = renderFdupes(bw, groups)
	case JSON:
		err = renderJSON(bw, groups, false)
	case JSONPretty:
		err = renderJSON(bw, groups, true)
	case LDJSON:
		err = renderLDJSON(bw, groups)
	case Machine:
		err = renderMachine(bw, groups)
	case CSV:
		err = renderCSV(bw, groups)
	default:
		return errors.Errorf("unknown format %d", int(format))
	}
	if err != nil {
		return errors.Wrapf(err, "rendering %s", format)
	}
	return bw.Flush()
}

func renderFdupes(w *bufio.Writer, groups [][]string) error {
	for i, g := range groups {
		if i > 0 {
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		for _, p := range g {
			if _, err := w.WriteString(p); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderJSON(w io.Writer, groups [][]string, pretty bool) error {
	if groups == nil {
		groups = [][]string{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(groups)
}

func renderLDJSON(w io.Writer, groups [][]string) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		if err := enc.Encode(g); err != nil {
			return err
		}
	}
	return nil
}

func renderMachine(w *bufio.Writer, groups [][]string) error {
	for _, g := range groups {
		for i, p := range g {
			if i > 0 {
				if err := w.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := w.WriteString(strconv.Quote(p)); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func renderCSV(w io.Writer, groups [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"count", "bucket"}); err != nil {
		return err
	}
	for _, g := range groups {
		row := make([]string, 0, len(g)+1)
		row = append(row, strconv.Itoa(len(g)))
		row = append(row, g...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
