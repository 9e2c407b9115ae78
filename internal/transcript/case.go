package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	pronounIContractionPattern = regexp.MustCompile(`\bi['’](?:m|d|ll|ve|re|s)\b`)
	pronounIWordPattern        = regexp.MustCompile(`\bi\b`)
)

func capitalizeSentences(text string) string {
	text = capitalizeSentenceStarts(text)
	text = pronounIContractionPattern.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
	return capitalizeStandalonePronounI(text)
}

// nonTerminalAbbreviations end in a period without ending the sentence.
var nonTerminalAbbreviations = map[string]struct{}{
	"cf":   {},
	"dr":   {},
	"e.g":  {},
	"i.e":  {},
	"jr":   {},
	"mr":   {},
	"mrs":  {},
	"ms":   {},
	"prof": {},
	"sr":   {},
	"st":   {},
	"vs":   {},
}

// capitalizeSentenceStarts upper-cases the first letter of the text and of
// every word that follows a sentence-ending word. text must already be
// whitespace-normalized.
func capitalizeSentenceStarts(text string) string {
	words := strings.Split(text, " ")
	capitalizeNext := true
	for i, word := range words {
		if capitalizeNext {
			words[i] = capitalizeFirstLetter(word)
		}
		capitalizeNext = endsSentence(word)
	}
	return strings.Join(words, " ")
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')`)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '!', '?':
		return true
	case '.':
		_, abbreviation := nonTerminalAbbreviations[strings.ToLower(strings.TrimSuffix(trimmed, "."))]
		return !abbreviation
	default:
		return false
	}
}

// capitalizeFirstLetter upper-cases the first letter, skipping leading quotes.
// Words starting with a digit are left alone.
func capitalizeFirstLetter(word string) string {
	for i, r := range word {
		if unicode.IsDigit(r) {
			return word
		}
		if unicode.IsLetter(r) {
			return word[:i] + string(unicode.ToUpper(r)) + word[i+utf8.RuneLen(r):]
		}
	}
	return word
}

func capitalizeStandalonePronounI(text string) string {
	matches := pronounIWordPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))

	last := 0
	for _, match := range matches {
		start, end := match[0], match[1]
		out.WriteString(text[last:start])
		if isInitialism(text, start, end) {
			out.WriteString(text[start:end])
		} else {
			out.WriteString("I")
		}
		last = end
	}

	out.WriteString(text[last:])
	return out.String()
}

// isInitialism reports whether the "i" at text[start:end] is part of a dotted
// initialism such as "i.e." rather than the pronoun.
func isInitialism(text string, start int, end int) bool {
	if end+1 < len(text) && text[end] == '.' {
		nextRune, _ := utf8.DecodeRuneInString(text[end+1:])
		if unicode.IsLetter(nextRune) {
			return true
		}
	}

	if start > 1 && text[start-1] == '.' && end < len(text) && text[end] == '.' {
		prevRune, _ := utf8.DecodeLastRuneInString(text[:start-1])
		if unicode.IsLetter(prevRune) {
			return true
		}
	}

	return false
}
