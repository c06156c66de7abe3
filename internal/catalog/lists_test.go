package catalog

import (
	"context"
	"testing"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

func TestCreateListAndMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := s.CreateBook(ctx, testBook(id, "Book "+id)); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.CreateList(ctx, "to-read", "books on deck")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if list.ID == 0 {
		t.Error("list id not assigned")
	}

	for _, id := range []string{"2", "1", "3"} {
		if err := s.AddBookToList(ctx, list.ID, id); err != nil {
			t.Fatalf("AddBookToList(%s): %v", id, err)
		}
	}

	// Membership keeps insertion order, not id order.
	books, err := s.BooksInList(ctx, list.ID)
	if err != nil {
		t.Fatalf("BooksInList: %v", err)
	}
	gotOrder := []string{books[0].ID, books[1].ID, books[2].ID}
	wantOrder := []string{"2", "1", "3"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestCreateListDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateList(ctx, "dupe", ""); err != nil {
		t.Fatal(err)
	}
	_, err := s.CreateList(ctx, "dupe", "other description")
	if !errors.Is(err, errors.ErrDuplicate) {
		t.Fatalf("err = %v, want duplicate", err)
	}
}

func TestAddBookToListTwice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, testBook("1", "Once")); err != nil {
		t.Fatal(err)
	}
	list, err := s.CreateList(ctx, "l", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddBookToList(ctx, list.ID, "1"); err != nil {
		t.Fatal(err)
	}
	err = s.AddBookToList(ctx, list.ID, "1")
	if !errors.Is(err, errors.ErrDuplicate) {
		t.Fatalf("err = %v, want duplicate", err)
	}
}

func TestRemoveBookFromList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, testBook("1", "Member")); err != nil {
		t.Fatal(err)
	}
	list, err := s.CreateList(ctx, "l", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddBookToList(ctx, list.ID, "1"); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveBookFromList(ctx, list.ID, "1"); err != nil {
		t.Fatalf("RemoveBookFromList: %v", err)
	}
	err = s.RemoveBookFromList(ctx, list.ID, "1")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("second remove err = %v, want not-found", err)
	}
}

func TestDeleteListCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, testBook("1", "Kept")); err != nil {
		t.Fatal(err)
	}
	list, err := s.CreateList(ctx, "doomed", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddBookToList(ctx, list.ID, "1"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteList(ctx, list.ID); err != nil {
		t.Fatalf("DeleteList: %v", err)
	}

	if _, err := s.GetListByName(ctx, "doomed"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("list lookup err = %v, want not-found", err)
	}
	// Membership is gone, the book itself survives.
	if _, err := s.GetBook(ctx, "1"); err != nil {
		t.Errorf("book should survive list deletion: %v", err)
	}
}

func TestSaveAndUnsaveBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, testBook("1", "Bookmark Me")); err != nil {
		t.Fatal(err)
	}

	saved := &domain.SavedBook{BookID: "1", Notes: "read ch. 3 first", Tags: "go,db", Priority: 2}
	if err := s.SaveBook(ctx, saved); err != nil {
		t.Fatalf("SaveBook: %v", err)
	}
	if saved.ID == 0 {
		t.Error("saved id not assigned")
	}

	// Only one bookmark per book.
	err := s.SaveBook(ctx, &domain.SavedBook{BookID: "1"})
	if !errors.Is(err, errors.ErrDuplicate) {
		t.Fatalf("second save err = %v, want duplicate", err)
	}

	got, err := s.GetSavedBook(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Notes != saved.Notes || got.Tags != saved.Tags || got.Priority != 2 {
		t.Errorf("got %+v", got)
	}

	if err := s.UnsaveBook(ctx, "1"); err != nil {
		t.Fatalf("UnsaveBook: %v", err)
	}
	if err := s.UnsaveBook(ctx, "1"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("second unsave err = %v, want not-found", err)
	}
}

func TestSavedBooksOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := s.CreateBook(ctx, testBook(id, "Book "+id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SaveBook(ctx, &domain.SavedBook{BookID: "1", Priority: 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBook(ctx, &domain.SavedBook{BookID: "2", Priority: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBook(ctx, &domain.SavedBook{BookID: "3", Priority: 1}); err != nil {
		t.Fatal(err)
	}

	saved, err := s.SavedBooks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 3 {
		t.Fatalf("got %d saved, want 3", len(saved))
	}
	if saved[0].BookID != "2" || saved[1].BookID != "3" || saved[2].BookID != "1" {
		t.Errorf("order = %s, %s, %s", saved[0].BookID, saved[1].BookID, saved[2].BookID)
	}
}
