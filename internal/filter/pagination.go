package filter

import (
	"net/url"
	"strconv"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/validator"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrInvalidPage = xerrors.Message("Invalid page.")

type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) Page {
	return Page{Number: number, Size: size}
}

// ParsePage reads `page` and `page_size`. page_size above the maximum is
// clamped, anything non-numeric or non-positive is a validation error.
func ParsePage(query url.Values, defaultSize int, v *validator.Validator) Page {
	p := Page{Number: 1, Size: defaultSize}

	if s := query.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			v.AddError("page", "must be a positive integer")
		} else {
			p.Number = n
		}
	}
	if s := query.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			v.AddError("page_size", "must be a positive integer")
		} else {
			p.Size = min(n, MaxPageSize)
		}
	}
	return p
}

func (p Page) Limit() int {
	return p.Size
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

type Metadata struct {
	Count      int64
	Page       int
	PageSize   int
	TotalPages int
}

// NewMetadata fails with ErrInvalidPage when the page lies past the last one.
// An empty result still has one (empty) page.
func NewMetadata(p Page, count int64) (Metadata, error) {
	totalPages := 1
	if count > 0 {
		totalPages = int((count + int64(p.Size) - 1) / int64(p.Size))
	}
	if p.Number > totalPages {
		return Metadata{}, xerrors.New(ErrInvalidPage)
	}
	return Metadata{
		Count:      count,
		Page:       p.Number,
		PageSize:   p.Size,
		TotalPages: totalPages,
	}, nil
}

func (m Metadata) Next(u *url.URL) *string {
	if m.Page >= m.TotalPages {
		return nil
	}
	return pageLink(u, m.Page+1)
}

func (m Metadata) Previous(u *url.URL) *string {
	if m.Page <= 1 {
		return nil
	}
	return pageLink(u, m.Page-1)
}

func pageLink(u *url.URL, page int) *string {
	link := *u
	query := link.Query()
	if page == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	link.RawQuery = query.Encode()
	s := link.String()
	return &s
}
