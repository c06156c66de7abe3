package domain

import "time"

// SortOrder is the upstream result ordering.
type SortOrder string

// Valid sort orders.
const (
	OrderPopular SortOrder = "popular"
	OrderYear    SortOrder = "year"
	OrderTitle   SortOrder = "title"
)

// Valid reports whether o is a recognized sort order.
// The empty order is valid and means upstream default.
func (o SortOrder) Valid() bool {
	switch o {
	case "", OrderPopular, OrderYear, OrderTitle:
		return true
	}
	return false
}

// SearchFilters narrows an upstream search.
// Limit outside [1,100] is clamped by the orchestrator.
type SearchFilters struct {
	YearFrom  int
	YearTo    int
	Language  string
	Extension string
	Order     SortOrder
	Page      int
	Limit     int
}

// SearchQuery is one recorded search-history entry.
// Filters holds the serialized filter record as stored.
type SearchQuery struct {
	ID      int64
	Query   string
	Filters string
	FoundAt time.Time
}

// BrowseFilters narrows a local catalog browse.
// Year bounds are compared lexicographically; callers zero-pad.
type BrowseFilters struct {
	Title     string // substring match
	Language  string // exact match
	Extension string // exact match
	YearFrom  string
	YearTo    string
	Author    string // substring match via join
}
