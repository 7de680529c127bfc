package pgvector

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// operatorSuffix maps a filter-DSL operator to the SQL comparison it
// builds. $eq is implicit (a bare scalar value with no operator object).
var operatorSuffix = map[string]string{
	"$eq":  "=",
	"$ne":  "!=",
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

// buildWhereClause translates a filter map (field -> scalar | operator
// object) into a SQL WHERE clause fragment (without the leading "WHERE")
// plus its positional args, consuming placeholder numbers starting at
// startArg. Unknown operators are skipped with a warning, per the filter
// DSL's "ignore unknown operators" rule.
func buildWhereClause(filters map[string]any, startArg int, logger zerolog.Logger) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	var clauses []string
	var args []any
	argIdx := startArg

	for field, raw := range filters {
		opMap, isOpMap := raw.(map[string]any)
		if !isOpMap {
			clauses = append(clauses, fmt.Sprintf("%s = $%d", field, argIdx))
			args = append(args, raw)
			argIdx++
			continue
		}

		for op, val := range opMap {
			switch op {
			case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
				clauses = append(clauses, fmt.Sprintf("%s %s $%d", field, operatorSuffix[op], argIdx))
				args = append(args, val)
				argIdx++
			case "$in", "$nin":
				items := toAnySlice(val)
				inClause := formatInClause(items)
				keyword := "IN"
				if op == "$nin" {
					keyword = "NOT IN"
				}
				clauses = append(clauses, fmt.Sprintf("%s %s %s", field, keyword, inClause))
			case "$contains":
				// list-field containment: field is a JSONB array column.
				needle, err := json.Marshal([]any{val})
				if err != nil {
					logger.Warn().Err(err).Str("field", field).Msg("ignoring unencodable $contains value")
					continue
				}
				clauses = append(clauses, fmt.Sprintf("%s @> $%d::jsonb", field, argIdx))
				args = append(args, string(needle))
				argIdx++
			default:
				logger.Warn().Str("field", field).Str("operator", op).Msg("ignoring unknown filter operator")
			}
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return strings.Join(clauses, " AND "), args
}

// formatInClause renders a literal SQL IN-list, quoting strings and
// doubling embedded quotes. A single-element list renders as "(v)", never
// the Go-tuple-literal "(v,)" a naive formatter would produce.
func formatInClause(items []any) string {
	if len(items) == 0 {
		return "()"
	}
	parts := make([]string, len(items))
	for i, v := range items {
		parts[i] = quoteSQLLiteral(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func quoteSQLLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(t), "'", "''") + "'"
	}
}

func toAnySlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []any{t}
	}
}
