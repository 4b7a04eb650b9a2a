package sql

import (
	"fmt"
	"regexp"

	libinjection "github.com/corazawaf/libinjection-go"
)

// SecurityViolationError signals an injection signature match. Unlike
// ordinary policy violations, which are accumulated into a result for the
// caller to relay back to the generator, a detected attack aborts
// processing immediately and must never reach sanitization or execution.
// Callers should treat it as an incident, not a retry prompt.
type SecurityViolationError struct {
	Signature string // name of the matched signature
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("SQL injection pattern detected: %s", e.Signature)
}

// injectionSignature pairs a name (safe to log and surface) with its
// detection pattern.
type injectionSignature struct {
	name    string
	pattern *regexp.Regexp
}

// injectionSignatures are checked against the raw candidate text. The set
// deliberately favors false positives over false negatives: a generated
// query tripping one of these is regenerated, an attack is stopped.
var injectionSignatures = []injectionSignature{
	{"statement termination with comment", regexp.MustCompile(`;\s*--`)},
	{"statement termination with block comment", regexp.MustCompile(`;\s*/\*`)},
	{"stacked DDL/DML statement", regexp.MustCompile(`(?i);\s*(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|EXEC|EXECUTE)\b`)},
	{"quoted OR tautology", regexp.MustCompile(`(?i)'\s*OR\s+'1'\s*=\s*'1`)},
	{"numeric OR tautology", regexp.MustCompile(`(?i)'\s*OR\s+1\s*=\s*1`)},
	{"generic OR string comparison", regexp.MustCompile(`(?i)\bOR\s+'[^']+'\s*=\s*'[^']+'`)},
	{"generic OR numeric comparison", regexp.MustCompile(`(?i)\bOR\s+\d+\s*=\s*\d+`)},
	{"UNION-based injection", regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`)},
	{"EXEC function call", regexp.MustCompile(`(?i)\bEXEC\s*\(`)},
	{"SQL Server extended procedure", regexp.MustCompile(`(?i)\bxp_\w+`)},
	{"block comment obfuscation", regexp.MustCompile(`/\*.*\*/`)},
	{"CHAR encoding bypass", regexp.MustCompile(`(?i)\bCHAR\s*\(\s*\d+\s*\)`)},
	{"hex-encoded literal", regexp.MustCompile(`(?i)\b0x[0-9a-f]+\b`)},
}

// scanInjection checks the raw candidate text against the fixed signature
// set, then fingerprints each string literal with libinjection. Literals
// are the one place attacker-shaped fragments hide from the structural
// checks, and libinjection is built for exactly that fragment context.
//
// Returns nil when clean, or a *SecurityViolationError naming the first
// matched signature.
func scanInjection(sqlQuery string) *SecurityViolationError {
	for _, sig := range injectionSignatures {
		if sig.pattern.MatchString(sqlQuery) {
			return &SecurityViolationError{Signature: sig.name}
		}
	}

	for _, literal := range literalContents(sqlQuery) {
		if isSQLi, fingerprint := libinjection.IsSQLi(literal); isSQLi {
			return &SecurityViolationError{
				Signature: fmt.Sprintf("libinjection fingerprint %s in string literal", string(fingerprint)),
			}
		}
	}

	return nil
}
