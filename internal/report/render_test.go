package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleGroups = [][]string{{"foo", "bar"}, {"hello", "world"}}

func render(t *testing.T, format Format, groups [][]string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, format, groups))
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"fdupes", Fdupes, false},
		{"JSON", JSON, false},
		{"json_pretty", JSONPretty, false},
		{" ldjson ", LDJSON, false},
		{"machine", Machine, false},
		{"csv", CSV, false},
		{"yaml", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Len(t, Formats(), int(numFormats))
}

func TestRenderFdupes(t *testing.T) {
	assert.Equal(t, "foo\nbar\n\nhello\nworld\n", render(t, Fdupes, sampleGroups))
	assert.Equal(t, "", render(t, Fdupes, nil))
}

func TestRenderJSON(t *testing.T) {
	assert.Equal(t, `[["foo","bar"],["hello","world"]]`+"\n", render(t, JSON, sampleGroups))
	assert.Equal(t, "[]\n", render(t, JSON, nil))
	assert.Equal(t, `[["a<b>&c","d"]]`+"\n", render(t, JSON, [][]string{{"a<b>&c", "d"}}))
}

func TestRenderJSONPretty(t *testing.T) {
	want := "[\n  [\n    \"foo\",\n    \"bar\"\n  ],\n  [\n    \"hello\",\n    \"world\"\n  ]\n]\n"
	assert.Equal(t, want, render(t, JSONPretty, sampleGroups))
	assert.Equal(t, "[]\n", render(t, JSONPretty, nil))
}

func TestRenderLDJSON(t *testing.T) {
	assert.Equal(t, "[\"foo\",\"bar\"]\n[\"hello\",\"world\"]\n", render(t, LDJSON, sampleGroups))

	mixed := [][]string{{"alone"}, {"a", "b"}}
	assert.Equal(t, "[\"a\",\"b\"]\n", render(t, LDJSON, mixed))
	assert.Equal(t, "", render(t, LDJSON, nil))
}

func TestRenderMachine(t *testing.T) {
	assert.Equal(t, "\"foo\" \"bar\"\n\"hello\" \"world\"\n", render(t, Machine, sampleGroups))
	assert.Equal(t, "\"with space\" \"quo\\\"te\"\n", render(t, Machine, [][]string{{"with space", `quo"te`}}))
}

func TestRenderCSV(t *testing.T) {
	assert.Equal(t, "count,bucket\n2,foo,bar\n2,hello,world\n", render(t, CSV, sampleGroups))
	assert.Equal(t, "count,bucket\n", render(t, CSV, nil))
	assert.Equal(t, "count,bucket\n2,\"a,b\",c\n", render(t, CSV, [][]string{{"a,b", "c"}}))
}

func TestRenderUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, Format(99), sampleGroups))
	assert.Equal(t, "unknown", Format(99).String())
}
