// Package paging computes page-number windows and slices record sets into
// pages.
package paging

import (
	"encoding/json"
	"sort"
)

// Window radii used by the dashboard pages.
const (
	RadiusNarrow = 1
	RadiusWide   = 2
)

// Item is a page number or an ellipsis marker.
type Item struct {
	Page     int
	Ellipsis bool
}

// MarshalJSON encodes a page as its number and an ellipsis as "ellipsis".
func (it Item) MarshalJSON() ([]byte, error) {
	if it.Ellipsis {
		return []byte(`"ellipsis"`), nil
	}
	return json.Marshal(it.Page)
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON.
func (it *Item) UnmarshalJSON(data []byte) error {
	if string(data) == `"ellipsis"` {
		*it = Item{Ellipsis: true}
		return nil
	}
	var page int
	if err := json.Unmarshal(data, &page); err != nil {
		return err
	}
	*it = Item{Page: page}
	return nil
}

// Window is the compressed page-number sequence shown for navigation.
type Window struct {
	Pages       []Item `json:"page_numbers"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
}

// TotalPages returns ceil(total/perPage), or 0 when either is not positive.
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Clamp moves page into [1, totalPages]. With no pages it returns 1.
func Clamp(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Paginate builds the window for current. The first and last pages are
// always present, as is every page within radius of current. A gap of one
// page is filled in; longer gaps collapse to a single ellipsis.
func Paginate(total, perPage, current, radius int) Window {
	totalPages := TotalPages(total, perPage)
	current = Clamp(current, totalPages)
	w := Window{Pages: []Item{}, CurrentPage: current, TotalPages: totalPages}
	if totalPages == 0 {
		return w
	}
	if radius < 0 {
		radius = 0
	}

	include := map[int]bool{1: true, totalPages: true}
	for p := current - radius; p <= current+radius; p++ {
		if p >= 1 && p <= totalPages {
			include[p] = true
		}
	}
	pages := make([]int, 0, len(include))
	for p := range include {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	prev := 0
	for _, p := range pages {
		switch gap := p - prev - 1; {
		case prev == 0 || gap == 0:
		case gap == 1:
			w.Pages = append(w.Pages, Item{Page: prev + 1})
		default:
			w.Pages = append(w.Pages, Item{Ellipsis: true})
		}
		w.Pages = append(w.Pages, Item{Page: p})
		prev = p
	}
	return w
}

// Slice returns page of items, with page clamped into range. The result
// shares its backing array with items but cannot grow into it.
func Slice[T any](items []T, page, perPage int) []T {
	totalPages := TotalPages(len(items), perPage)
	if totalPages == 0 {
		return []T{}
	}
	page = Clamp(page, totalPages)
	lo := (page - 1) * perPage
	hi := lo + perPage
	if hi > len(items) {
		hi = len(items)
	}
	return items[lo:hi:hi]
}
