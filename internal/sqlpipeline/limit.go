package sqlpipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// terminalLimitRe matches a LIMIT clause anchored at the end of the
// statement (ignoring a single optional trailing semicolon and whitespace),
// so a LIMIT inside a subquery or CTE body does not count as the outer
// statement's limit.
var terminalLimitRe = regexp.MustCompile(`(?is)LIMIT\s+\d+\s*(OFFSET\s+\d+\s*)?;?\s*$`)

// EnsureLimit appends a terminal LIMIT clause at cap when the outer
// statement doesn't already end with one. "WITH cte AS (SELECT ... LIMIT 10)
// SELECT * FROM cte" still gets an outer LIMIT appended, because the LIMIT
// 10 there belongs to the CTE body, not the final SELECT.
func EnsureLimit(sql string, cap int) string {
	trimmed := strings.TrimRight(sql, " \t\n\r;")
	if terminalLimitRe.MatchString(trimmed) {
		return sql
	}
	return fmt.Sprintf("%s\nLIMIT %d", trimmed, cap)
}
