package analytics

import (
	"strings"
)

// forbiddenKeywords are mutation and DDL keywords, matched with a trailing
// space on the normalized statement
var forbiddenKeywords = []string{
	"insert ", "update ", "delete ", "drop ", "alter ",
	"create ", "truncate ", "grant ", "revoke ",
}

// ValidateSQL is a textual sandbox applied to every compiled statement before
// execution. It enforces a single read-only SELECT over the analytics table.
// It is not a parser and only guards against compiler defects.
func ValidateSQL(sql string) error {
	normalized := normalizeSQL(sql)

	if !strings.HasPrefix(normalized, "select ") {
		return NewError(CodeSQLNotSelect, "Only SELECT statements are allowed", "")
	}

	if strings.Contains(normalized, ";") {
		return NewError(CodeSQLMultiStatement, "Multiple SQL statements are not allowed", "")
	}

	if !strings.Contains(" "+normalized+" ", " from "+TableName+" ") {
		return NewError(CodeSQLDisallowedTable, "Query must read from "+TableName, "")
	}

	if keyword, found := findForbiddenKeyword(normalized); found {
		return NewError(CodeSQLForbiddenKeyword,
			"Forbidden SQL keyword: "+strings.TrimSpace(keyword), "")
	}

	return nil
}

func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(strings.ToLower(sql)), " ")
}

func findForbiddenKeyword(normalized string) (string, bool) {
	for _, keyword := range forbiddenKeywords {
		if strings.Contains(normalized, keyword) {
			return keyword, true
		}
	}
	return "", false
}

func containsForbiddenKeyword(s string) bool {
	_, found := findForbiddenKeyword(strings.ToLower(s))
	return found
}
