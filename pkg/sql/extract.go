package sql

import (
	"regexp"
	"strings"
)

// Extraction of table and column references from a SELECT statement.
// This is deliberately not a full SQL parser: it understands just enough
// structure to enforce allow/deny decisions, which is all the policy
// checks need. All input is masked first so literals cannot inject
// structure.

// clauseEndKeywords terminate the FROM table list.
var clauseEndKeywords = []string{
	"WHERE", "GROUP", "ORDER", "HAVING", "LIMIT", "UNION", "INTERSECT", "EXCEPT", "ON", "JOIN",
	"INNER", "LEFT", "RIGHT", "FULL", "OUTER", "CROSS",
}

var (
	fromPattern = regexp.MustCompile(`(?i)\bFROM\b`)
	joinPattern = regexp.MustCompile(`(?i)\b(?:INNER\s+|LEFT\s+(?:OUTER\s+)?|RIGHT\s+(?:OUTER\s+)?|FULL\s+(?:OUTER\s+)?|CROSS\s+)?JOIN\s+([A-Za-z_][\w$.]*)`)
	identPattern = regexp.MustCompile(`^[A-Za-z_][\w$.]*`)
)

// extractTables collects table identifiers referenced in FROM and JOIN
// clauses, normalized to uppercase, in first-seen order. Parenthesized
// sub-selects in FROM are skipped here; the subquery check rejects them
// separately.
func extractTables(masked string) []string {
	var tables []string
	seen := make(map[string]bool)

	add := func(name string) {
		name = normalizeTableName(name)
		if name != "" && !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}

	for _, loc := range fromPattern.FindAllStringIndex(masked, -1) {
		rest := masked[loc[1]:]
		for _, ref := range splitTopLevel(clauseText(rest), ',') {
			ref = strings.TrimSpace(ref)
			if ref == "" || strings.HasPrefix(ref, "(") {
				continue
			}
			if m := identPattern.FindString(ref); m != "" {
				add(m)
			}
		}
	}

	for _, m := range joinPattern.FindAllStringSubmatch(masked, -1) {
		add(m[1])
	}

	return tables
}

// clauseText truncates text at the first clause-ending keyword.
func clauseText(text string) string {
	upper := strings.ToUpper(text)
	end := len(text)
	for _, kw := range clauseEndKeywords {
		idx := indexWord(upper, kw)
		if idx != -1 && idx < end {
			end = idx
		}
	}
	return text[:end]
}

// indexWord finds the first whole-word occurrence of an uppercase keyword
// in uppercase text, or -1.
func indexWord(upper, keyword string) int {
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
		return i
	}
	return -1
}

// normalizeTableName uppercases a table reference and strips any schema
// qualifier; the allowlist holds bare table names.
func normalizeTableName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	return name
}

// extractColumns collects column identifiers from the SELECT list,
// normalized to uppercase. Wildcards are recorded as "*" (and skipped by
// the allowlist check); function-call expressions are skipped entirely —
// their inner columns are not separately validated, a documented
// limitation of the clause-level extractor.
func extractColumns(masked string) []string {
	selectIdx := indexWord(strings.ToUpper(masked), "SELECT")
	if selectIdx == -1 {
		return nil
	}

	listStart := selectIdx + len("SELECT")
	fromIdx := indexWord(strings.ToUpper(masked[listStart:]), "FROM")
	listEnd := len(masked)
	if fromIdx != -1 {
		listEnd = listStart + fromIdx
	}

	selectList := strings.TrimSpace(masked[listStart:listEnd])
	selectList = stripDistinct(selectList)

	var columns []string
	for _, expr := range splitTopLevel(selectList, ',') {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if col := columnName(expr); col != "" {
			columns = append(columns, col)
		}
	}
	return columns
}

// stripDistinct removes a leading DISTINCT keyword from a SELECT list.
// Only the whole word counts; a column that merely starts with the same
// letters ("distinctive") is left alone.
func stripDistinct(selectList string) string {
	const kw = "DISTINCT"
	if len(selectList) < len(kw) || !strings.EqualFold(selectList[:len(kw)], kw) {
		return selectList
	}
	if len(selectList) > len(kw) && isWordChar(selectList[len(kw)]) {
		return selectList
	}
	return selectList[len(kw):]
}

var asAliasPattern = regexp.MustCompile(`(?i)\s+AS\s+\w+\s*$`)

// columnName reduces one SELECT-list expression to the column identifier
// to validate, or "" when the expression is not a plain column.
func columnName(expr string) string {
	if expr == "*" || strings.HasSuffix(expr, ".*") {
		return "*"
	}

	// Function calls are skipped; COUNT(*), SUM(amount) and the like are
	// policy-checked by function name elsewhere, not as columns.
	if strings.Contains(expr, "(") {
		return ""
	}

	// Validate the underlying column, not its alias.
	expr = asAliasPattern.ReplaceAllString(expr, "")
	expr = strings.TrimSpace(expr)

	// Implicit alias: "amount total" validates "amount".
	if parts := strings.Fields(expr); len(parts) > 1 {
		expr = parts[0]
	}

	// Strip table qualifier.
	if idx := strings.LastIndex(expr, "."); idx != -1 {
		expr = expr[idx+1:]
	}

	expr = strings.Trim(expr, "`\"[]")
	if identPattern.FindString(expr) != expr || expr == "" {
		return ""
	}
	return strings.ToUpper(expr)
}
