package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true, // trailing
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Len(t, normalized, len(input))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
	require.Equal(t, []any{"one", "two"}, decoded["items"])
	require.Equal(t, map[string]any{"enabled": true}, decoded["nested"])
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text, }",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
	require.Equal(t, "contains // and /* comment-like */ text, }", decoded["value"])
}

func TestNormalizeJSONCKeepsEscapedQuotes(t *testing.T) {
	normalized, err := normalizeJSONC(`{"value":"a \"quoted\" // text"}`)
	require.NoError(t, err)
	require.Contains(t, normalized, `// text`)
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestLineCol(t *testing.T) {
	content := "line1\nline2\nline3"

	line, col := lineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = lineCol(content, 8)
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = lineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)

	line, col = lineCol("", 4)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)
}

func TestDecodeErrorLocationSurvivesComments(t *testing.T) {
	_, _, err := Parse(`{
  // a comment that must not shift the reported column
  "capture": {"sample_rate": "fast"}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}
