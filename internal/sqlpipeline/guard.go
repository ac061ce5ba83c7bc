// Package sqlpipeline implements the read-only SQL validation and execution
// pipeline: the shared DML guard, the auto-applied row cap, the dry-run
// preflight, execution with timeouts, result sanitisation, and the
// learning-loop write-back.
package sqlpipeline

import (
	"regexp"
	"strings"
)

// forbiddenKeywords are scanned for anywhere in the statement body, not just
// the first token, because a CTE can wrap DML ("WITH cte AS (SELECT 1)
// INSERT INTO t ...") and a naive first-token check would miss it.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "MERGE", "CREATE",
}

var keywordRe = map[string]*regexp.Regexp{}

func init() {
	for _, kw := range forbiddenKeywords {
		keywordRe[kw] = regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_])` + kw + `([^A-Za-z0-9_]|$)`)
	}
}

// IsBlocked answers whether sql should be rejected before it ever reaches
// the warehouse, and why. It is the single shared implementation used both
// as a pre-tool callback and inside the executor, so the two call sites can
// never disagree about what counts as DML.
func IsBlocked(sql string) (bool, string) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return true, "empty statement"
	}

	for _, kw := range forbiddenKeywords {
		if keywordRe[kw].MatchString(trimmed) {
			return true, "Only SELECT statements are permitted; found forbidden keyword " + kw
		}
	}

	if hasTrailingStatement(trimmed) {
		return true, "Only SELECT statements are permitted; multi-statement SQL (semicolon followed by more content) is not allowed"
	}

	return false, ""
}

// hasTrailingStatement reports whether sql contains a semicolon followed by
// more non-whitespace content — i.e. more than one statement. A single
// trailing semicolon (optionally followed only by whitespace) is allowed.
func hasTrailingStatement(sql string) bool {
	idx := strings.IndexByte(sql, ';')
	if idx < 0 {
		return false
	}
	rest := strings.TrimSpace(sql[idx+1:])
	return rest != ""
}
