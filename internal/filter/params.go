package filter

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/siahsang/blogplatform/internal/utils/stringutils"
	"github.com/siahsang/blogplatform/internal/validator"
	"github.com/siahsang/blogplatform/models"
)

// PostsFromQuery builds the predicate for post listings. Groups are AND-ed;
// unknown parameters are ignored and blank ones are treated as absent.
func PostsFromQuery(query url.Values, v *validator.Validator) Cond {
	conds := []Cond{}

	if s := param(query, "category"); s != "" {
		conds = append(conds, Eq(PostCategorySlug, s))
	}
	if tags := stringutils.SplitList(query["tags"]...); len(tags) > 0 {
		conds = append(conds, In(PostTagSlug, tags...))
	}
	if s := param(query, "author"); s != "" {
		conds = append(conds, Eq(PostAuthorSlug, s))
	}

	conds = append(conds, dateRange(query, "published_after", "published_before", PostPublishedAt, v)...)
	conds = append(conds, dateRange(query, "created_after", "created_before", PostCreatedAt, v)...)

	if year, ok := intParam(query, "year", 1, 9999, v); ok {
		conds = append(conds, Year(PostPublishedAt, year))
	}
	if month, ok := intParam(query, "month", 1, 12, v); ok {
		conds = append(conds, Month(PostPublishedAt, month))
	}
	if s := param(query, "status"); s != "" {
		if models.PostStatus(s).IsValid() {
			conds = append(conds, Eq(PostStatus, s))
		} else {
			v.AddError("status", "must be one of draft, published")
		}
	}
	if s := param(query, "title"); s != "" {
		conds = append(conds, IContains(PostTitle, s))
	}
	if s := param(query, "search"); s != "" {
		conds = append(conds, PostSearch(s))
	}
	if b, ok := boolParam(query, "has_featured_image", v); ok {
		if b {
			conds = append(conds, Not(Blank(PostFeaturedImage)))
		} else {
			conds = append(conds, Blank(PostFeaturedImage))
		}
	}

	return And(conds...)
}

// PostSearch is the free-text group: a case-insensitive match on any of the
// post's text, its author name, its tag names or its category name.
func PostSearch(term string) Cond {
	return Or(
		IContains(PostTitle, term),
		IContains(PostContent, term),
		IContains(PostExcerpt, term),
		IContains(PostAuthorName, term),
		IContains(PostTagName, term),
		IContains(PostCategoryName, term),
	)
}

// SearchFromQuery reads the search endpoint parameters q, category and tag.
// ok is false when all three are blank, which must yield no results at all.
func SearchFromQuery(query url.Values) (cond Cond, ok bool) {
	q := param(query, "q")
	category := param(query, "category")
	tag := param(query, "tag")
	if q == "" && category == "" && tag == "" {
		return nil, false
	}

	conds := []Cond{}
	if q != "" {
		conds = append(conds, PostSearch(q))
	}
	if category != "" {
		conds = append(conds, Eq(PostCategorySlug, category))
	}
	if tag != "" {
		conds = append(conds, Eq(PostTagSlug, tag))
	}
	return And(conds...), true
}

func CategoriesFromQuery(query url.Values, v *validator.Validator) Cond {
	conds := []Cond{}
	if s := param(query, "name"); s != "" {
		conds = append(conds, IContains(CategoryName, s))
	}
	if s := param(query, "search"); s != "" {
		conds = append(conds, Or(IContains(CategoryName, s), IContains(CategoryDescription, s)))
	}
	if n, ok := intParam(query, "min_posts", 0, 1<<31-1, v); ok {
		conds = append(conds, GTE(CategoryPostsCount, int64(n)))
	}
	return And(conds...)
}

func TagsFromQuery(query url.Values, v *validator.Validator) Cond {
	conds := []Cond{}
	if s := param(query, "name"); s != "" {
		conds = append(conds, IContains(TagName, s))
	}
	if s := param(query, "search"); s != "" {
		conds = append(conds, IContains(TagName, s))
	}
	if n, ok := intParam(query, "min_posts", 0, 1<<31-1, v); ok {
		conds = append(conds, GTE(TagPostsCount, int64(n)))
	}
	return And(conds...)
}

func AuthorsFromQuery(query url.Values, v *validator.Validator) Cond {
	conds := []Cond{}
	if s := param(query, "display_name"); s != "" {
		conds = append(conds, IContains(AuthorDisplayName, s))
	}
	if s := param(query, "username"); s != "" {
		conds = append(conds, IContains(AuthorUsername, s))
	}
	if s := param(query, "search"); s != "" {
		conds = append(conds, Or(IContains(AuthorDisplayName, s), IContains(AuthorEmail, s)))
	}
	if n, ok := intParam(query, "min_articles", 0, 1<<31-1, v); ok {
		conds = append(conds, GTE(AuthorPostsCount, int64(n)))
	}
	return And(conds...)
}

func CommentsFromQuery(query url.Values, v *validator.Validator) Cond {
	conds := []Cond{}
	if s := param(query, "post"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id < 1 {
			v.AddError("post", "must be a post id")
		} else {
			conds = append(conds, Eq(CommentPostID, id))
		}
	}
	if s := param(query, "status"); s != "" {
		if models.CommentStatus(s).IsValid() {
			conds = append(conds, Eq(CommentStatus, s))
		} else {
			v.AddError("status", "must be one of pending, approved, rejected")
		}
	}
	return And(conds...)
}

func param(query url.Values, key string) string {
	return strings.TrimSpace(query.Get(key))
}

func intParam(query url.Values, key string, lo, hi int, v *validator.Validator) (int, bool) {
	s := param(query, key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		v.AddError(key, "must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
		return 0, false
	}
	return n, true
}

func boolParam(query url.Values, key string, v *validator.Validator) (bool, bool) {
	switch strings.ToLower(param(query, key)) {
	case "":
		return false, false
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	v.AddError(key, "must be a boolean")
	return false, false
}

// dateRange accepts YYYY-MM-DD or RFC 3339 bounds. A date-only upper bound
// covers the whole day.
func dateRange(query url.Values, afterKey, beforeKey string, f Field, v *validator.Validator) []Cond {
	var conds []Cond
	if t, _, ok := dateParam(query, afterKey, v); ok {
		conds = append(conds, GTE(f, t))
	}
	if t, dateOnly, ok := dateParam(query, beforeKey, v); ok {
		if dateOnly {
			conds = append(conds, LT(f, t.AddDate(0, 0, 1)))
		} else {
			conds = append(conds, LTE(f, t))
		}
	}
	return conds
}

func dateParam(query url.Values, key string, v *validator.Validator) (t time.Time, dateOnly bool, ok bool) {
	s := param(query, key)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, true
	}
	v.AddError(key, "must be a date in YYYY-MM-DD format")
	return time.Time{}, false, false
}
