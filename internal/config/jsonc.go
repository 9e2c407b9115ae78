package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// normalizeJSONC blanks comments and trailing commas so the result is plain
// JSON. Blanked bytes become spaces and newlines are kept, so decoder offsets
// still point at the original line and column.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)

	inString := false
	escaped := false
	// lastComma is the offset of a comma that may turn out to be trailing.
	lastComma := -1

	for i := 0; i < len(out); i++ {
		ch := out[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch {
		case ch == '"':
			inString = true
			lastComma = -1
		case ch == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
				i++
			}
		case ch == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				if out[i] != '\n' && out[i] != '\r' {
					out[i] = ' '
				}
			}
			i--
		case ch == ',':
			lastComma = i
		case ch == '}' || ch == ']':
			if lastComma >= 0 {
				out[lastComma] = ' '
			}
			lastComma = -1
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		default:
			lastComma = -1
		}
	}

	return string(out), nil
}

// withLocation prefixes JSON decode errors with a 1-based line and column.
func withLocation(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}

	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func lineCol(content string, offset int64) (int, int) {
	limit := int(min(max(offset, 1), int64(len(content))))

	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
