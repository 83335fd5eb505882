package filter

import (
	"net/url"
	"slices"
	"strings"

	"github.com/siahsang/blogplatform/internal/validator"
)

type Order struct {
	Field Field
	Desc  bool
}

// Ordering whitelists the `ordering` parameter of a listing.
type Ordering struct {
	Allowed map[string]Field
	Default []Order
}

var (
	PostOrdering = Ordering{
		Allowed: map[string]Field{
			"created_at":   PostCreatedAt,
			"updated_at":   PostUpdatedAt,
			"published_at": PostPublishedAt,
			"title":        PostTitle,
		},
		Default: []Order{{Field: PostPublishedAt, Desc: true}, {Field: PostCreatedAt, Desc: true}},
	}
	CategoryOrdering = Ordering{
		Allowed: map[string]Field{
			"name":        CategoryName,
			"created_at":  CategoryCreatedAt,
			"posts_count": CategoryPostsCount,
		},
		Default: []Order{{Field: CategoryName}},
	}
	TagOrdering = Ordering{
		Allowed: map[string]Field{
			"name":        TagName,
			"created_at":  TagCreatedAt,
			"posts_count": TagPostsCount,
		},
		Default: []Order{{Field: TagName}},
	}
	AuthorOrdering = Ordering{
		Allowed: map[string]Field{
			"display_name": AuthorDisplayName,
			"created_at":   AuthorCreatedAt,
			"posts_count":  AuthorPostsCount,
		},
		Default: []Order{{Field: AuthorDisplayName}},
	}
	CommentOrdering = Ordering{
		Allowed: map[string]Field{"created_at": CommentCreatedAt},
		Default: []Order{{Field: CommentCreatedAt, Desc: true}},
	}
	// SearchOrdering is fixed; search ignores the ordering parameter.
	SearchOrdering = Ordering{
		Default: []Order{{Field: PostPublishedAt, Desc: true}},
	}
)

// Parse reads a comma separated `ordering` parameter, e.g. "-published_at,title".
func (o Ordering) Parse(query url.Values, v *validator.Validator) []Order {
	raw := strings.TrimSpace(query.Get("ordering"))
	if raw == "" || o.Allowed == nil {
		return o.Default
	}

	var orders []Order
	for _, term := range strings.Split(raw, ",") {
		term = strings.TrimSpace(term)
		desc := strings.HasPrefix(term, "-")
		name := strings.TrimPrefix(term, "-")
		field, ok := o.Allowed[name]
		if !ok {
			v.AddError("ordering", "unsupported ordering field "+name)
			return o.Default
		}
		orders = append(orders, Order{Field: field, Desc: desc})
	}
	return orders
}

// OrderBy renders an ORDER BY clause; tiebreak is appended to keep pages stable.
func OrderBy(cols Columns, orders []Order, tiebreak string) (string, error) {
	parts := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		col, ok := cols[o.Field]
		if !ok || col.Exists != "" {
			return "", ErrUnknownField
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, col.Expr+" "+dir+" NULLS LAST")
	}
	if tiebreak != "" {
		parts = append(parts, tiebreak)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

// SortRows orders rows in place with the same semantics as OrderBy: missing
// values sort last in either direction and ties keep their input order.
func SortRows[T Row](rows []T, orders []Order) {
	slices.SortStableFunc(rows, func(a, b T) int {
		for _, o := range orders {
			av, bv := first(a.Values(o.Field)), first(b.Values(o.Field))
			switch {
			case av == nil && bv == nil:
				continue
			case av == nil:
				return 1
			case bv == nil:
				return -1
			}
			n, _ := Compare(av, bv)
			if n == 0 {
				continue
			}
			if o.Desc {
				return -n
			}
			return n
		}
		return 0
	})
}

func first(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
