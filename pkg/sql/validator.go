// Package sql validates candidate SQL against an allowlist policy and
// rewrites it into a sanitized, row-limited statement. The validator is
// the security boundary between an untrusted text generator and the data
// source: nothing the generator produces may execute unless it survives
// every check here.
package sql

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/logging"
	"github.com/askdb-inc/askdb-engine/pkg/policy"
)

// Result contains the verdict for one candidate statement. Errors and
// warnings accumulate across all checks so the caller (typically a
// regenerate-with-feedback loop) sees the complete defect list in one
// pass. SanitizedSQL is set only when IsValid is true.
type Result struct {
	IsValid      bool
	Errors       []string
	Warnings     []string
	SanitizedSQL string
	TablesUsed   []string
	ColumnsUsed  []string
}

// Validator checks candidate SQL against a policy. It holds no mutable
// state; a single instance is safe for any number of concurrent callers.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a validator. If logger is nil, a no-op logger is
// used.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger.Named("validator")}
}

var (
	limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)
	joinKeyword  = regexp.MustCompile(`(?i)\bJOIN\b`)
)

// Validate runs every check against the candidate statement and returns
// the accumulated result. The one exception to accumulate-and-report is
// injection detection: a signature match returns a nil result and a
// *SecurityViolationError immediately, so a detected attack can never
// proceed to sanitization.
func (v *Validator) Validate(pol *policy.Policy, sqlQuery string) (*Result, error) {
	result := &Result{IsValid: true}

	sqlQuery = strings.TrimSpace(sqlQuery)
	normalized := stripTrailingSemicolon(sqlQuery)

	// Parse. A statement the tokenizer cannot make sense of gets a single
	// error and no further checks.
	if parseErr := checkParse(normalized); parseErr != "" {
		result.IsValid = false
		result.Errors = append(result.Errors, parseErr)
		return result, nil
	}

	masked := maskLiterals(normalized)

	v.checkStatementType(masked, result)
	v.checkMultipleStatements(masked, result)
	v.checkBlockedKeywords(pol, masked, result)
	v.checkTables(pol, masked, result)
	v.checkColumns(pol, masked, result)
	v.checkSubqueries(pol, masked, result)
	v.checkJoins(pol, masked, result)
	v.checkLimit(pol, masked, result)

	// Fail-fast injection scan on the raw text. Runs even when the result
	// already carries errors: an attack is an incident either way.
	if violation := scanInjection(normalized); violation != nil {
		v.logger.Warn("security violation detected",
			zap.String("signature", violation.Signature),
			zap.String("sql", logging.SanitizeSQL(sqlQuery)))
		return nil, violation
	}

	if result.IsValid {
		result.SanitizedSQL = sanitize(normalized, pol.MaxRowLimit)
	}

	return result, nil
}

// checkParse returns a parse error message, or "" when the statement is
// tokenizable.
func checkParse(sqlQuery string) string {
	if sqlQuery == "" {
		return "Failed to parse SQL statement: empty input"
	}
	if hasUnterminatedLiteral(sqlQuery) {
		return "Failed to parse SQL statement: unterminated string literal"
	}
	if !hasBalancedParens(maskLiterals(sqlQuery)) {
		return "Failed to parse SQL statement: unbalanced parentheses"
	}
	return ""
}

func (v *Validator) checkStatementType(masked string, result *Result) {
	stmtType := firstWord(masked)
	if stmtType != "SELECT" {
		result.IsValid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Only SELECT statements are allowed, got: %s", stmtType))
	}
}

func (v *Validator) checkMultipleStatements(masked string, result *Result) {
	// The trailing semicolon was already stripped; any remaining semicolon
	// outside a literal separates statements.
	if strings.Contains(masked, ";") {
		result.IsValid = false
		result.Errors = append(result.Errors, "Multiple SQL statements are not allowed")
	}
}

func (v *Validator) checkBlockedKeywords(pol *policy.Policy, masked string, result *Result) {
	found := make(map[string]bool)
	for _, keyword := range pol.BlockedKeywords() {
		if countKeyword(masked, keyword) > 0 {
			found[keyword] = true
		}
	}
	if len(found) == 0 {
		return
	}

	keywords := make([]string, 0, len(found))
	for k := range found {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	result.IsValid = false
	result.Errors = append(result.Errors,
		fmt.Sprintf("Blocked keywords found: %s", strings.Join(keywords, ", ")))
}

func (v *Validator) checkTables(pol *policy.Policy, masked string, result *Result) {
	result.TablesUsed = extractTables(masked)
	for _, table := range result.TablesUsed {
		if !pol.TableAllowed(table) {
			result.IsValid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("Table not in allowlist: %s", table))
		}
	}
}

func (v *Validator) checkColumns(pol *policy.Policy, masked string, result *Result) {
	result.ColumnsUsed = extractColumns(masked)

	for _, table := range result.TablesUsed {
		if _, hasColumnList := pol.ColumnsFor(table); !hasColumnList {
			continue
		}
		for _, col := range result.ColumnsUsed {
			if col == "*" {
				continue
			}
			// An identifier matching an allowed function name is not a
			// column reference.
			if pol.FunctionAllowed(col) {
				continue
			}
			if !pol.ColumnAllowed(table, col) {
				result.IsValid = false
				result.Errors = append(result.Errors,
					fmt.Sprintf("Column '%s' not in allowlist for table '%s'", col, table))
			}
		}
	}
}

func (v *Validator) checkSubqueries(pol *policy.Policy, masked string, result *Result) {
	if pol.AllowSubqueries {
		return
	}
	// Keyword-count heuristic, counted outside string literals so a
	// SELECT appearing inside data cannot trip it. More than one SELECT
	// means a nested query somewhere.
	if countKeyword(masked, "SELECT") > 1 {
		result.IsValid = false
		result.Errors = append(result.Errors, "Subqueries are not allowed")
	}
}

func (v *Validator) checkJoins(pol *policy.Policy, masked string, result *Result) {
	if pol.AllowJoins {
		return
	}
	if joinKeyword.MatchString(masked) {
		result.IsValid = false
		result.Errors = append(result.Errors, "JOIN operations are not allowed")
	}
}

func (v *Validator) checkLimit(pol *policy.Policy, masked string, result *Result) {
	match := limitPattern.FindStringSubmatch(masked)

	if match == nil {
		if pol.RequireLimit {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("No LIMIT clause found; default LIMIT %d will be added", pol.MaxRowLimit))
		}
		return
	}

	limitValue, err := strconv.Atoi(match[1])
	if err != nil {
		return
	}
	if limitValue > pol.MaxRowLimit {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("LIMIT %d exceeds maximum %d and will be capped", limitValue, pol.MaxRowLimit))
	}
}

// sanitize rewrites a statement that passed validation: keywords and
// identifiers outside string literals are uppercased, whitespace is
// collapsed, and a LIMIT clause is appended or capped to maxRowLimit.
// The rewrite reaches a fixed point: sanitizing a sanitized statement
// returns it unchanged.
func sanitize(sqlQuery string, maxRowLimit int) string {
	formatted := canonicalize(sqlQuery)

	masked := maskLiterals(formatted)
	match := limitPattern.FindStringSubmatchIndex(masked)

	if match == nil {
		return formatted + " LIMIT " + strconv.Itoa(maxRowLimit)
	}

	limitValue, err := strconv.Atoi(masked[match[2]:match[3]])
	if err == nil && limitValue > maxRowLimit {
		return formatted[:match[2]] + strconv.Itoa(maxRowLimit) + formatted[match[3]:]
	}

	return formatted
}

// canonicalize uppercases and whitespace-collapses everything outside
// string literals, leaving literal contents byte-for-byte intact.
func canonicalize(sqlQuery string) string {
	var b strings.Builder
	b.Grow(len(sqlQuery))

	state := stateNormal
	prevChar := rune(0)
	pendingSpace := false

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch {
			case char == ' ' || char == '\t' || char == '\n' || char == '\r':
				pendingSpace = b.Len() > 0
				continue
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			}
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(toUpperRune(char))
		case stateSingleQuote:
			b.WriteRune(char)
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			b.WriteRune(char)
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return strings.TrimSpace(b.String())
}

func toUpperRune(char rune) rune {
	if char >= 'a' && char <= 'z' {
		return char - ('a' - 'A')
	}
	return char
}
