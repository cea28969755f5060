// Package script splits narration scripts into speakable segments.
//
// A segment is a trimmed, non-empty run of text ending at sentence
// punctuation or a paragraph break. The terminator stays attached to its
// segment so synthesis providers see the full sentence context.
package script

import (
	"iter"
	"strings"
	"unicode/utf8"
)

// isTerminator reports whether r ends a sentence. Wide/CJK punctuation is
// included so mixed-language scripts split correctly.
func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

// Segments returns a lazy ordered sequence of the speakable segments of
// text. Splitting happens at sentence-ending punctuation and at blank-line
// paragraph breaks; whitespace-only fragments are discarded. Empty input
// yields an empty sequence.
//
// The sequence is finite and restartable: each range re-scans text from the
// start.
func Segments(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := 0
		flush := func(end int) bool {
			seg := strings.TrimSpace(text[start:end])
			start = end
			if seg == "" {
				return true
			}
			return yield(seg)
		}
		for i, r := range text {
			if isTerminator(r) {
				end := i + utf8.RuneLen(r)
				// A run of terminators ("..." or "?!") stays one segment.
				if next, _ := utf8.DecodeRuneInString(text[end:]); isTerminator(next) {
					continue
				}
				if !flush(end) {
					return
				}
				continue
			}
			// Blank line = paragraph break.
			if r == '\n' && i+1 < len(text) && text[i+1] == '\n' {
				if !flush(i) {
					return
				}
			}
		}
		flush(len(text))
	}
}

// Split collects the segments of text into a slice. Convenience wrapper for
// callers that need the total up front (e.g. progress reporting).
func Split(text string) []string {
	var segs []string
	for seg := range Segments(text) {
		segs = append(segs, seg)
	}
	return segs
}
