package repository

import (
	"fmt"
	"strings"
)

// Op is a comparison operator of a Filter
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Filter is one predicate of a search, combined with AND
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq is shorthand for an equality filter
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// buildWhere renders filters as a WHERE clause. Columns must be listed in allowed.
func buildWhere(allowed map[string]bool, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if !allowed[f.Column] {
			return "", nil, fmt.Errorf("unsupported filter column %q", f.Column)
		}
		if !f.Op.valid() {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", f.Column, f.Op))
		args = append(args, f.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
