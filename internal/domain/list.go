package domain

import "time"

// ReadingList is a user-created, globally uniquely named book collection.
type ReadingList struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// ListBook is a book's membership in a reading list.
type ListBook struct {
	ListID   int64
	BookID   string
	Position int
	AddedAt  time.Time
}

// SavedBook is a per-book bookmark with user metadata.
// At most one SavedBook exists per book.
type SavedBook struct {
	ID       int64
	BookID   string
	Notes    string
	Tags     string
	Priority int
	SavedAt  time.Time
}
