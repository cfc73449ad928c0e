package llm

import "strings"

// Section labels the model is instructed to emit, in this order.
const (
	labelResponse = "RESPONSE:"
	labelCode     = "CODE:"
	labelLanguage = "LANGUAGE:"
)

// parseSections extracts the three labeled sections from raw model output.
// The output carries no format guarantee, so each label is optional:
//
//   - no RESPONSE label: the whole text is the explanation, code stays empty
//   - no CODE label: code stays empty, never fabricated
//   - no LANGUAGE label: the already active language is kept
//
// Extracted segments are trimmed; empty segments stay empty strings.
// activeLanguage must already be lower-case.
func parseSections(raw, activeLanguage string) Result {
	result := Result{Language: activeLanguage}

	start := strings.Index(raw, labelResponse)
	if start < 0 {
		result.Response = strings.TrimSpace(raw)
		return result
	}
	rest := raw[start+len(labelResponse):]

	codeAt := strings.Index(rest, labelCode)
	if codeAt < 0 {
		result.Response = strings.TrimSpace(rest)
		return result
	}
	result.Response = strings.TrimSpace(rest[:codeAt])
	rest = rest[codeAt+len(labelCode):]

	langAt := strings.Index(rest, labelLanguage)
	if langAt < 0 {
		result.Code = strings.TrimSpace(rest)
		return result
	}
	result.Code = strings.TrimSpace(rest[:langAt])

	if token := firstWord(rest[langAt+len(labelLanguage):]); token != "" {
		result.Language = strings.ToLower(token)
	}
	return result
}

// firstWord returns the first run of word characters (letters, digits,
// underscore) in s, skipping leading whitespace.
func firstWord(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && isWordByte(s[end]) {
		end++
	}
	return s[:end]
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '_'
}
