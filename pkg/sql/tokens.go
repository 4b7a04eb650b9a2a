package sql

import (
	"strings"
)

// Scanning helpers that are aware of SQL string literals and quoted
// identifiers. Every structural check in this package runs against masked
// text so that keywords inside literals ('; DROP' as data, not as code)
// cannot influence a verdict.

const (
	stateNormal = iota
	stateSingleQuote
	stateDoubleQuote
)

// maskLiterals replaces the contents of string literals and double-quoted
// identifiers with spaces, preserving the quotes and overall byte length
// so offsets found in the masked text splice correctly back into the
// original. The scan is byte-wise: quotes and backslashes are ASCII and
// never occur inside a multibyte UTF-8 sequence, and each masked byte
// becomes exactly one space.
func maskLiterals(sqlQuery string) string {
	var b strings.Builder
	b.Grow(len(sqlQuery))

	state := stateNormal
	prevByte := byte(0)

	for i := 0; i < len(sqlQuery); i++ {
		c := sqlQuery[i]
		switch state {
		case stateNormal:
			b.WriteByte(c)
			switch c {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Handle both backslash escape (\') and SQL standard escape ('').
			// For a doubled quote this exits and immediately re-enters on the
			// next quote, which correctly keeps the contents masked.
			if c == '\'' && prevByte != '\\' {
				b.WriteByte(c)
				state = stateNormal
			} else {
				b.WriteByte(' ')
			}
		case stateDoubleQuote:
			if c == '"' && prevByte != '\\' {
				b.WriteByte(c)
				state = stateNormal
			} else {
				b.WriteByte(' ')
			}
		}
		prevByte = c
	}

	return b.String()
}

// literalContents returns the inner text of every single-quoted string
// literal in the query.
func literalContents(sqlQuery string) []string {
	var literals []string
	var current strings.Builder

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			if char == '\'' {
				state = stateSingleQuote
				current.Reset()
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				literals = append(literals, current.String())
				state = stateNormal
			} else {
				current.WriteRune(char)
			}
		}
		prevChar = char
	}

	return literals
}

// hasUnterminatedLiteral reports whether the query ends inside a string
// literal or quoted identifier.
func hasUnterminatedLiteral(sqlQuery string) bool {
	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return state != stateNormal
}

// hasBalancedParens reports whether parentheses outside literals balance.
func hasBalancedParens(masked string) bool {
	depth := 0
	for _, char := range masked {
		switch char {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// stripTrailingSemicolon removes one trailing semicolon and surrounding
// whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}
	return sqlQuery
}

// countKeyword counts whole-word, case-insensitive occurrences of a
// keyword in masked text.
func countKeyword(masked, keyword string) int {
	count := 0
	upper := strings.ToUpper(masked)
	keyword = strings.ToUpper(keyword)

	for i := 0; i+len(keyword) <= len(upper); i++ {
		if upper[i:i+len(keyword)] != keyword {
			continue
		}
		if i > 0 && isWordChar(upper[i-1]) {
			continue
		}
		if end := i + len(keyword); end < len(upper) && isWordChar(upper[end]) {
			continue
		}
		count++
	}
	return count
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// firstWord returns the first keyword-like token of the statement.
func firstWord(masked string) string {
	trimmed := strings.TrimLeft(masked, " \t\n\r(")
	end := 0
	for end < len(trimmed) && isWordChar(trimmed[end]) {
		end++
	}
	return strings.ToUpper(trimmed[:end])
}

// splitTopLevel splits text on a separator rune, ignoring separators
// inside parentheses.
func splitTopLevel(text string, sep rune) []string {
	var parts []string
	var current strings.Builder
	depth := 0

	for _, char := range text {
		switch {
		case char == '(':
			depth++
			current.WriteRune(char)
		case char == ')':
			depth--
			current.WriteRune(char)
		case char == sep && depth == 0:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
