package remote

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Op is a comparison operator in a filter predicate.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Predicate is one field comparison. A Filter is the conjunction of its
// predicates; there is no disjunction and no joins at this layer.
type Predicate struct {
	Field string
	Op    Op
	Value string
}

type Filter []Predicate

// Where starts a filter. Chain And for further conjuncts:
//
//	remote.Where("unit_id", remote.OpEq, unitID).And("present", remote.OpEq, true)
func Where(field string, op Op, value any) Filter {
	return Filter{{Field: field, Op: op, Value: formatValue(value)}}
}

// And returns a new filter with one more conjunct. The receiver is left
// untouched, so several filters can branch from a shared base.
func (f Filter) And(field string, op Op, value any) Filter {
	out := make(Filter, len(f), len(f)+1)
	copy(out, f)
	return append(out, Predicate{Field: field, Op: op, Value: formatValue(value)})
}

// Encode adds the filter to a query string as repeated
// filter=field:op:value parameters.
func (f Filter) Encode(q url.Values) {
	for _, p := range f {
		q.Add("filter", fmt.Sprintf("%s:%s:%s", p.Field, p.Op, p.Value))
	}
}

func (f Filter) String() string {
	parts := make([]string, len(f))
	for i, p := range f {
		parts[i] = fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Value)
	}
	return strings.Join(parts, " and ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(x, ",")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// ParsePredicate decodes one field:op:value parameter. The dev backend uses
// it for the server side of the same wire format.
func ParsePredicate(s string) (Predicate, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return Predicate{}, fmt.Errorf("malformed filter %q", s)
	}
	op := Op(parts[1])
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn:
	default:
		return Predicate{}, fmt.Errorf("unknown filter operator %q", parts[1])
	}
	return Predicate{Field: parts[0], Op: op, Value: parts[2]}, nil
}
