package models

import (
	"time"
)

type BookStatus string

const (
	BookStatusAvailable BookStatus = "available"
	BookStatusBorrowed  BookStatus = "borrowed"
)

type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Email       string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	MemberSince time.Time `gorm:"not null" json:"member_since"`
}

type Book struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	Title  string     `gorm:"size:255;not null" json:"title"`
	Author string     `gorm:"size:255;not null" json:"author"`
	Year   int        `gorm:"not null" json:"year"`
	Status BookStatus `gorm:"size:16;not null;default:available;index" json:"status"`
}

type BorrowRecord struct {
	ID         uint       `gorm:"column:borrow_id;primaryKey" json:"borrow_id"`
	BookID     uint       `gorm:"not null;index" json:"book_id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date"`
}

func (BorrowRecord) TableName() string { return "borrows" }

// Open reports whether the record is still outstanding (book not yet returned).
func (b BorrowRecord) Open() bool { return b.ReturnDate == nil }

// OpenBorrow is the joined row returned when listing a user's outstanding loans:
// the ledger entry plus the details of the borrowed book.
type OpenBorrow struct {
	BorrowID   uint      `json:"borrow_id"`
	BookID     uint      `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Year       int       `json:"year"`
	BorrowDate time.Time `json:"borrow_date"`
}
