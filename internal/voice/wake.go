package voice

import (
	"strings"
	"unicode"
)

// normalize lowercases text and collapses punctuation into single spaces
func normalize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// matchWake finds the first wake phrase in text. It returns the words that
// follow it.
func matchWake(text string, phrases [][]string) (bool, string) {
	words := normalize(text)
	for i := range words {
		for _, phrase := range phrases {
			if hasPrefix(words[i:], phrase) {
				return true, strings.Join(words[i+len(phrase):], " ")
			}
		}
	}
	return false, ""
}

// stripWake removes a leading wake phrase from a command
func stripWake(text string, phrases [][]string) string {
	words := normalize(text)
	for _, phrase := range phrases {
		if hasPrefix(words, phrase) {
			return strings.Join(words[len(phrase):], " ")
		}
	}
	return strings.TrimSpace(text)
}

func hasPrefix(words, phrase []string) bool {
	if len(phrase) == 0 || len(words) < len(phrase) {
		return false
	}
	for i := range phrase {
		if words[i] != phrase[i] {
			return false
		}
	}
	return true
}

// compilePhrases splits phrases into words, longest first
func compilePhrases(phrases []string) [][]string {
	compiled := make([][]string, 0, len(phrases))
	for _, phrase := range phrases {
		if words := normalize(phrase); len(words) > 0 {
			compiled = append(compiled, words)
		}
	}
	for i := 1; i < len(compiled); i++ {
		for j := i; j > 0 && len(compiled[j]) > len(compiled[j-1]); j-- {
			compiled[j], compiled[j-1] = compiled[j-1], compiled[j]
		}
	}
	return compiled
}
