// Package hypermedia shapes outgoing book representations: it attaches
// state-dependent hypermedia links and computes the conditional-cache
// validator (ETag) over the augmented representation.
package hypermedia

import (
	"fmt"

	"library-api/internal/models"
)

// Link is a single hypermedia pointer. Method is empty for plain navigation
// links (self, collection).
type Link struct {
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// Links carries the navigation links plus exactly one action link chosen by
// the book's current status: borrow when available, return when borrowed.
type Links struct {
	Self       Link  `json:"self"`
	Collection Link  `json:"collection"`
	Borrow     *Link `json:"borrow,omitempty"`
	Return     *Link `json:"return,omitempty"`
}

// BookResource is a book representation ready to leave the system.
type BookResource struct {
	ID     uint              `json:"id"`
	Title  string            `json:"title"`
	Author string            `json:"author"`
	Year   int               `json:"year"`
	Status models.BookStatus `json:"status"`
	Links  Links             `json:"_links"`
}

// BookResourceFor builds the outgoing representation of a book. It is a pure
// function of (book, baseURL) and copies the book's fields, so callers keep
// their record unmodified.
func BookResourceFor(book models.Book, baseURL string) BookResource {
	res := BookResource{
		ID:     book.ID,
		Title:  book.Title,
		Author: book.Author,
		Year:   book.Year,
		Status: book.Status,
		Links: Links{
			Self:       Link{Href: fmt.Sprintf("%s/books/%d", baseURL, book.ID)},
			Collection: Link{Href: fmt.Sprintf("%s/books", baseURL)},
		},
	}

	switch book.Status {
	case models.BookStatusAvailable:
		res.Links.Borrow = &Link{
			Href:   fmt.Sprintf("%s/books/%d/borrow", baseURL, book.ID),
			Method: "POST",
		}
	case models.BookStatusBorrowed:
		res.Links.Return = &Link{
			Href:   fmt.Sprintf("%s/books/%d/return", baseURL, book.ID),
			Method: "POST",
		}
	}
	return res
}
