package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorNames(t *testing.T) {
	b := BookWithAuthors{
		Book: Book{ID: "1", Title: "Multi"},
		Authors: []Author{
			{ID: 1, Name: "First"},
			{ID: 2, Name: "Second"},
		},
	}
	assert.Equal(t, []string{"First", "Second"}, b.AuthorNames())

	empty := BookWithAuthors{Book: Book{ID: "2"}}
	assert.Equal(t, []string{}, empty.AuthorNames())
}
