// Package transcript normalizes recognizer output into utterance text.
package transcript

import (
	"regexp"
	"strings"
)

// Options controls normalization beyond whitespace and annotation cleanup.
type Options struct {
	CapitalizeSentences bool
}

var (
	// bracketAnnotation matches whisper markers such as [BLANK_AUDIO] or [ Silence ].
	bracketAnnotation = regexp.MustCompile(`\[[^\]]*\]`)
	// soundAnnotation matches a segment that is only a sound description like (music).
	soundAnnotation = regexp.MustCompile(`^\s*[(*][^)*]*[)*]\s*$`)
)

// Assemble joins recognized segments into one utterance. Non-speech
// annotations are removed and whitespace is collapsed, so a segment list with
// no speech yields "".
func Assemble(segments []string, opts Options) string {
	if len(segments) == 0 {
		return ""
	}

	kept := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = bracketAnnotation.ReplaceAllString(segment, " ")
		if soundAnnotation.MatchString(segment) {
			continue
		}
		kept = append(kept, segment)
	}

	normalized := strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized)
	}
	return normalized
}
