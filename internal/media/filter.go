package media

import (
	"strings"
	"unicode"
)

// MatchesKeywords reports whether every required keyword appears in text as a
// whole word, ignoring case. No keywords always match; empty text never
// matches required keywords.
func MatchesKeywords(text string, keywords []string) bool {
	required := normalizeKeywords(keywords)
	if len(required) == 0 {
		return true
	}

	if strings.TrimSpace(text) == "" {
		return false
	}

	words := make(map[string]struct{})

	for _, field := range strings.Fields(strings.ToLower(text)) {
		words[field] = struct{}{}

		trimmed := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if trimmed != "" {
			words[trimmed] = struct{}{}
		}
	}

	for _, kw := range required {
		if _, ok := words[kw]; !ok {
			return false
		}
	}

	return true
}

// HasMediaKind reports whether the message carries an attachment of kind.
func HasMediaKind(m *Message, kind Kind) bool {
	return m.Attachment(kind) != nil
}

// IsKnown reports whether identifier has already been recorded.
func IsKnown(existing map[string]struct{}, identifier string) bool {
	_, ok := existing[identifier]

	return ok
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}

	return out
}
