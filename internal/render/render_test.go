package render

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *query.Result {
	return &query.Result{
		Columns: []string{"id", "name", "note"},
		Rows: [][]any{
			{int64(1), "alice", nil},
			{int64(2), "bob, jr", "a|b"},
		},
		RowsAffected: 2,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsConfig(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderTable(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, New(buf, FormatTable).Result(sampleResult()))

	output := buf.String()
	assert.Contains(t, output, "id")
	assert.Contains(t, output, "alice")
	assert.Contains(t, output, "NULL")
	assert.Contains(t, output, "bob, jr")
	assert.Contains(t, output, "(2 rows)")
}

func TestRenderTable_ZeroRows(t *testing.T) {
	buf := new(bytes.Buffer)
	res := &query.Result{Columns: []string{"id"}, Rows: [][]any{}}
	require.NoError(t, New(buf, FormatTable).Result(res))
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, New(buf, FormatJSON).Result(sampleResult()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "alice", decoded[0]["name"])
	assert.Nil(t, decoded[0]["note"])
	assert.Equal(t, float64(2), decoded[1]["id"])
}

func TestRenderJSON_ZeroRows(t *testing.T) {
	buf := new(bytes.Buffer)
	res := &query.Result{Columns: []string{"id"}, Rows: [][]any{}}
	require.NoError(t, New(buf, FormatJSON).Result(res))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRenderCSV(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, New(buf, FormatCSV).Result(sampleResult()))
	assert.Equal(t, "id,name,note\n1,alice,NULL\n2,\"bob, jr\",a|b\n", buf.String())
}

func TestRenderMarkdown(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, New(buf, FormatMarkdown).Result(sampleResult()))

	expected := "| id | name | note |\n" +
		"| --- | --- | --- |\n" +
		"| 1 | alice | NULL |\n" +
		"| 2 | bob, jr | a\\|b |\n"
	assert.Equal(t, expected, buf.String())
}

func TestRenderNoRows(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		expected string
	}{
		{"known count", 3, "Query executed successfully, no rows returned (3 rows affected)\n"},
		{"unknown count", -1, "Query executed successfully, no rows returned\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, New(buf, FormatJSON).Result(&query.Result{RowsAffected: tt.affected}))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, "2024-01-02T03:04:05Z", formatValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}
