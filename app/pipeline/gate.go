package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeywordGate decides whether an article is gambling-related at all before
// any classifier call is made. Matching is case-insensitive over title and
// body; the first configured keyword found wins, so keyword order is the
// tie-break.
type KeywordGate struct {
	keywords  []string
	wholeWord bool
}

func NewKeywordGate(keywords []string, wholeWord bool) *KeywordGate {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &KeywordGate{keywords: lowered, wholeWord: wholeWord}
}

// Match returns the first matching keyword and whether any matched.
func (g *KeywordGate) Match(title, body string) (string, bool) {
	haystack := strings.ToLower(title + " " + body)
	for _, keyword := range g.keywords {
		if g.wholeWord {
			if containsWord(haystack, keyword) {
				return keyword, true
			}
			continue
		}
		if strings.Contains(haystack, keyword) {
			return keyword, true
		}
	}
	return "", false
}

// containsWord reports whether keyword occurs in haystack bounded by
// non-letter runes on both sides. "Spielhalle" does not match inside
// "Spielhallenbetreiber" in this mode.
func containsWord(haystack, keyword string) bool {
	for start := 0; ; {
		idx := strings.Index(haystack[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(keyword)
		if boundaryBefore(haystack, idx) && boundaryAfter(haystack, end) {
			return true
		}
		start = idx + 1
	}
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[idx:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
