package filter

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
)

var ErrUnknownField = xerrors.Message("unknown filter field")

// Field names a filterable attribute of an entity.
type Field string

// Column maps a Field onto SQL. Exists, when set, is a subquery template for
// to-many relations; the rendered condition replaces its %s and the whole
// thing is wrapped in EXISTS (...), which also keeps joined rows distinct.
type Column struct {
	Expr   string
	Exists string
}

type Columns map[Field]Column

func (c Columns) render(f Field, format func(expr string) string) (string, error) {
	col, ok := c[f]
	if !ok {
		return "", xerrors.Newf("%w: %s", ErrUnknownField, f)
	}
	cond := format(col.Expr)
	if col.Exists != "" {
		return "EXISTS (" + strings.Replace(col.Exists, "%s", cond, 1) + ")", nil
	}
	return cond, nil
}

// Args accumulates positional query arguments.
type Args struct {
	values []any
}

func NewArgs(initial ...any) *Args {
	return &Args{values: initial}
}

// Add appends v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

func (a *Args) Values() []any {
	return a.values
}

// Row exposes the attributes of one candidate record. Values returns every
// value of a field (several for to-many relations, none for NULL), normalised
// to string, int64, bool or time.Time.
type Row interface {
	Values(f Field) []any
}

// Cond is a query predicate usable both as SQL and against in-memory rows.
type Cond interface {
	SQL(cols Columns, args *Args) (string, error)
	Match(row Row) bool
}

type eqCond struct {
	field Field
	value any
}

func Eq(f Field, value any) Cond {
	return eqCond{field: f, value: normalize(value)}
}

func (c eqCond) SQL(cols Columns, args *Args) (string, error) {
	return cols.render(c.field, func(expr string) string {
		return expr + " = " + args.Add(c.value)
	})
}

func (c eqCond) Match(row Row) bool {
	for _, v := range row.Values(c.field) {
		if n, ok := Compare(v, c.value); ok && n == 0 {
			return true
		}
	}
	return false
}

type inCond struct {
	field  Field
	values []any
}

// In matches when the field equals any of values. No values never matches.
func In[T any](f Field, values ...T) Cond {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = normalize(v)
	}
	return inCond{field: f, values: anyValues}
}

func (c inCond) SQL(cols Columns, args *Args) (string, error) {
	if len(c.values) == 0 {
		return "FALSE", nil
	}
	return cols.render(c.field, func(expr string) string {
		placeholders := make([]string, len(c.values))
		for i, v := range c.values {
			placeholders[i] = args.Add(v)
		}
		return expr + " IN (" + strings.Join(placeholders, ", ") + ")"
	})
}

func (c inCond) Match(row Row) bool {
	for _, want := range c.values {
		if (eqCond{field: c.field, value: want}).Match(row) {
			return true
		}
	}
	return false
}

type containsCond struct {
	field Field
	value string
}

// IContains is a case-insensitive substring match.
func IContains(f Field, value string) Cond {
	return containsCond{field: f, value: value}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c containsCond) SQL(cols Columns, args *Args) (string, error) {
	return cols.render(c.field, func(expr string) string {
		return expr + " ILIKE " + args.Add("%"+likeEscaper.Replace(c.value)+"%") + ` ESCAPE '\'`
	})
}

func (c containsCond) Match(row Row) bool {
	needle := strings.ToLower(c.value)
	for _, v := range row.Values(c.field) {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

type compareCond struct {
	field Field
	op    string
	value any
}

func GTE(f Field, value any) Cond { return compareCond{field: f, op: ">=", value: normalize(value)} }
func LTE(f Field, value any) Cond { return compareCond{field: f, op: "<=", value: normalize(value)} }
func LT(f Field, value any) Cond { return compareCond{field: f, op: "<", value: normalize(value)} }

func (c compareCond) SQL(cols Columns, args *Args) (string, error) {
	return cols.render(c.field, func(expr string) string {
		return expr + " " + c.op + " " + args.Add(c.value)
	})
}

func (c compareCond) Match(row Row) bool {
	for _, v := range row.Values(c.field) {
		n, ok := Compare(v, c.value)
		if !ok {
			continue
		}
		switch c.op {
		case ">=":
			if n >= 0 {
				return true
			}
		case "<=":
			if n <= 0 {
				return true
			}
		case "<":
			if n < 0 {
				return true
			}
		}
	}
	return false
}

type datePartCond struct {
	field Field
	part  string
	value int
}

// Year and Month compare calendar parts in UTC.
func Year(f Field, year int) Cond { return datePartCond{field: f, part: "YEAR", value: year} }
func Month(f Field, month int) Cond { return datePartCond{field: f, part: "MONTH", value: month} }

func (c datePartCond) SQL(cols Columns, args *Args) (string, error) {
	return cols.render(c.field, func(expr string) string {
		return "EXTRACT(" + c.part + " FROM " + expr + " AT TIME ZONE 'UTC') = " + args.Add(c.value)
	})
}

func (c datePartCond) Match(row Row) bool {
	for _, v := range row.Values(c.field) {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		t = t.UTC()
		got := t.Year()
		if c.part == "MONTH" {
			got = int(t.Month())
		}
		if got == c.value {
			return true
		}
	}
	return false
}

type blankCond struct {
	field Field
}

// Blank matches NULL or empty string values.
func Blank(f Field) Cond {
	return blankCond{field: f}
}

func (c blankCond) SQL(cols Columns, args *Args) (string, error) {
	return cols.render(c.field, func(expr string) string {
		return "(" + expr + " IS NULL OR " + expr + " = '')"
	})
}

func (c blankCond) Match(row Row) bool {
	for _, v := range row.Values(c.field) {
		if s, ok := v.(string); !ok || s != "" {
			return false
		}
	}
	return true
}

type notCond struct {
	inner Cond
}

// Not negates a condition. Only use it over conditions that never yield SQL
// NULL, such as Blank or to-many fields.
func Not(c Cond) Cond {
	return notCond{inner: c}
}

func (c notCond) SQL(cols Columns, args *Args) (string, error) {
	inner, err := c.inner.SQL(cols, args)
	if err != nil {
		return "", err
	}
	return "NOT (" + inner + ")", nil
}

func (c notCond) Match(row Row) bool {
	return !c.inner.Match(row)
}

type junction struct {
	op    string
	conds []Cond
}

// And joins conditions; nil entries are skipped and an empty And matches
// everything.
func And(conds ...Cond) Cond {
	return junction{op: "AND", conds: compact(conds)}
}

// Or joins conditions; an empty Or matches nothing.
func Or(conds ...Cond) Cond {
	return junction{op: "OR", conds: compact(conds)}
}

func compact(conds []Cond) []Cond {
	out := make([]Cond, 0, len(conds))
	for _, c := range conds {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (j junction) SQL(cols Columns, args *Args) (string, error) {
	if len(j.conds) == 0 {
		if j.op == "AND" {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	parts := make([]string, 0, len(j.conds))
	for _, c := range j.conds {
		s, err := c.SQL(cols, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, " "+j.op+" "), nil
}

func (j junction) Match(row Row) bool {
	if j.op == "AND" {
		for _, c := range j.conds {
			if !c.Match(row) {
				return false
			}
		}
		return true
	}
	for _, c := range j.conds {
		if c.Match(row) {
			return true
		}
	}
	return false
}

// normalize reduces named string, integer and bool types to the kinds Row
// implementations return, so Eq(PostStatus, models.PostPublished) matches.
func normalize(v any) any {
	switch v.(type) {
	case string, int64, bool, time.Time:
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint())
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// Compare orders two normalised values of the same kind. ok is false when the
// kinds differ.
func Compare(a, b any) (n int, ok bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}
