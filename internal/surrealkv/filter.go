package surrealkv

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/raphaelgruber/splunkgo/internal/kvstore"
	"github.com/raphaelgruber/splunkgo/internal/models"
)

var (
	collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	fieldPath      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// comparison operators understood in filter documents.
var operators = map[string]string{
	"$eq":  "=",
	"$ne":  "!=",
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

func validateName(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("%w: collection name %q", models.ErrInvalidName, name)
	}
	return nil
}

// queryBuilder renders a kvstore.Query as SurrealQL. Values are always
// bound as parameters; field names are validated before interpolation.
type queryBuilder struct {
	table string
	vars  map[string]any
}

func newQueryBuilder(table string) *queryBuilder {
	return &queryBuilder{table: table, vars: map[string]any{"tb": table}}
}

func (b *queryBuilder) bind(v any) string {
	name := fmt.Sprintf("p%d", len(b.vars))
	b.vars[name] = v
	return "$" + name
}

// column maps a record field onto a SurrealQL expression. _key is the
// record id.
func (b *queryBuilder) column(field string) (string, error) {
	if field == models.KeyField {
		return "id", nil
	}
	if !fieldPath.MatchString(field) {
		return "", fmt.Errorf("%w: field %q", models.ErrInvalidName, field)
	}
	return field, nil
}

func (b *queryBuilder) value(field string, v any) string {
	if field == models.KeyField {
		return "type::record($tb, " + b.bind(v) + ")"
	}
	return b.bind(v)
}

// where renders a filter document. Keys are ANDed in sorted order.
func (b *queryBuilder) where(filter map[string]any) (string, error) {
	var conds []string
	for _, key := range slices.Sorted(maps.Keys(filter)) {
		val := filter[key]

		if key == "$and" || key == "$or" {
			clauses, ok := val.([]any)
			if !ok {
				return "", fmt.Errorf("%w: %s expects a list", models.ErrOperation, key)
			}
			var parts []string
			for _, c := range clauses {
				sub, ok := c.(map[string]any)
				if !ok {
					return "", fmt.Errorf("%w: %s expects a list of objects", models.ErrOperation, key)
				}
				expr, err := b.where(sub)
				if err != nil {
					return "", err
				}
				if expr != "" {
					parts = append(parts, "("+expr+")")
				}
			}
			joiner := " AND "
			if key == "$or" {
				joiner = " OR "
			}
			if len(parts) > 0 {
				conds = append(conds, "("+strings.Join(parts, joiner)+")")
			}
			continue
		}

		col, err := b.column(key)
		if err != nil {
			return "", err
		}

		ops, isOps := val.(map[string]any)
		if !isOps {
			conds = append(conds, col+" = "+b.value(key, val))
			continue
		}
		for _, op := range slices.Sorted(maps.Keys(ops)) {
			sym, ok := operators[op]
			if !ok {
				return "", fmt.Errorf("%w: unsupported operator %q", models.ErrOperation, op)
			}
			conds = append(conds, col+" "+sym+" "+b.value(key, ops[op]))
		}
	}
	return strings.Join(conds, " AND "), nil
}

// orderBy parses "f", "f:1", "f:-1", comma separated.
func (b *queryBuilder) orderBy(sort string) (clause string, cols []string, err error) {
	var parts []string
	for spec := range strings.SplitSeq(sort, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		field, dir, _ := strings.Cut(spec, ":")
		col, err := b.column(field)
		if err != nil {
			return "", nil, err
		}
		switch dir {
		case "", "1":
			parts = append(parts, col+" ASC")
		case "-1":
			parts = append(parts, col+" DESC")
		default:
			return "", nil, fmt.Errorf("%w: sort direction %q", models.ErrOperation, dir)
		}
		cols = append(cols, col)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return " ORDER BY " + strings.Join(parts, ", "), cols, nil
}

// build renders the full SELECT statement for q.
func (b *queryBuilder) build(q kvstore.Query) (string, error) {
	order, sortCols, err := b.orderBy(q.Sort)
	if err != nil {
		return "", err
	}

	projection := "*"
	if len(q.Fields) > 0 {
		cols := []string{"id"}
		for _, f := range q.Fields {
			col, err := b.column(f)
			if err != nil {
				return "", err
			}
			if !slices.Contains(cols, col) {
				cols = append(cols, col)
			}
		}
		for _, col := range sortCols {
			if !slices.Contains(cols, col) {
				cols = append(cols, col)
			}
		}
		projection = strings.Join(cols, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + projection + " FROM type::table($tb)")

	cond, err := b.where(q.Filter)
	if err != nil {
		return "", err
	}
	if cond != "" {
		sb.WriteString(" WHERE " + cond)
	}
	sb.WriteString(order)
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.bind(q.Limit))
	}
	if q.Skip > 0 {
		sb.WriteString(" START " + b.bind(q.Skip))
	}
	return sb.String(), nil
}
