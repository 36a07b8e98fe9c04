package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Markup roles of the default listing site.
const (
	DefaultPaginationTag   = "a"
	DefaultPaginationAttr  = "class"
	DefaultPaginationValue = "pagination-page"
	DefaultContainerTag    = "div"
	DefaultContainerAttr   = "class"
	DefaultContainerValue  = "item_table-header"
	DefaultLinkTag         = "a"
	DefaultPriceTag        = "span"
	DefaultPageParam       = "p"
	DefaultOrigin          = "https://www.avito.ru/"
)

// Layout holds the site-specific selectors used to find pagination links and
// listing entries. Changing sites should only require a different Layout.
type Layout struct {
	Origin string

	PaginationTag   string
	PaginationAttr  string
	PaginationValue string

	ContainerTag   string
	ContainerAttr  string
	ContainerValue string

	LinkTag  string
	PriceTag string

	// PageParam is the query parameter that carries the page number.
	PageParam string

	// SinglePageFallback treats a first page without pagination but with
	// listing containers as a one-page listing instead of a failure.
	SinglePageFallback bool
}

// DefaultLayout returns the layout of the default listing site.
func DefaultLayout() Layout {
	return Layout{
		Origin:             DefaultOrigin,
		PaginationTag:      DefaultPaginationTag,
		PaginationAttr:     DefaultPaginationAttr,
		PaginationValue:    DefaultPaginationValue,
		ContainerTag:       DefaultContainerTag,
		ContainerAttr:      DefaultContainerAttr,
		ContainerValue:     DefaultContainerValue,
		LinkTag:            DefaultLinkTag,
		PriceTag:           DefaultPriceTag,
		PageParam:          DefaultPageParam,
		SinglePageFallback: true,
	}
}

// Validate checks that every selector role is populated.
func (l Layout) Validate() error {
	required := []struct{ key, value string }{
		{"origin", l.Origin},
		{"pagination_tag", l.PaginationTag},
		{"pagination_attr", l.PaginationAttr},
		{"pagination_value", l.PaginationValue},
		{"container_tag", l.ContainerTag},
		{"container_attr", l.ContainerAttr},
		{"container_value", l.ContainerValue},
		{"link_tag", l.LinkTag},
		{"price_tag", l.PriceTag},
		{"page_param", l.PageParam},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("layout.%s must be set", r.key)
		}
	}
	if _, err := l.OriginURL(); err != nil {
		return err
	}
	return nil
}

// OriginURL parses Origin as an absolute URL.
func (l Layout) OriginURL() (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(l.Origin))
	if err != nil {
		return nil, fmt.Errorf("parse layout origin: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("layout origin %q must be an absolute URL", l.Origin)
	}
	return u, nil
}
