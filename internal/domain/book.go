// Package domain defines the core record types and closed enums for zdl.
package domain

import "time"

// Book is a Z-Library book known to the local catalog.
// ID and Hash come from the upstream service; ID is the stable external key.
type Book struct {
	ID          string
	Hash        string
	Title       string
	Year        string
	Publisher   string
	Language    string
	Extension   string
	Size        string // human-readable, e.g. "10.5 MB"
	Filesize    int64  // bytes
	CoverURL    string
	Description string
	ISBN        string
	Edition     string
	Pages       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Author is a unique author name with a catalog-assigned surrogate id.
type Author struct {
	ID   int64
	Name string
}

// BookWithAuthors is a book enriched with its ordered author list.
type BookWithAuthors struct {
	Book    Book
	Authors []Author
}

// AuthorNames returns the author names in link order.
func (b BookWithAuthors) AuthorNames() []string {
	names := make([]string, len(b.Authors))
	for i, a := range b.Authors {
		names[i] = a.Name
	}
	return names
}
