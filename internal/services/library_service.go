package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"library-api/internal/models"
	"library-api/internal/repositories"
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrBookNotFound is returned when the requested book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrEmailTaken is returned when user registration hits the unique
	// constraint on email.
	ErrEmailTaken = errors.New("email already exists")

	// ErrBookNotAvailable is returned when a borrow is attempted on a book
	// whose status is not `available`.
	ErrBookNotAvailable = errors.New("book is not available")

	// ErrBookBorrowed is returned when a delete is attempted on a book that is
	// currently out on loan.
	ErrBookBorrowed = errors.New("cannot delete a borrowed book")

	// ErrNoOpenBorrow is returned when a return is attempted on a book with no
	// outstanding borrow record.
	ErrNoOpenBorrow = errors.New("no active borrow record for this book")
)

// ─── Service Interface ────────────────────────────────────────────────────────

// LibraryService defines the application-level operations of the library
// system. It is the sole writer of users, books, and the borrow ledger.
type LibraryService interface {
	ListUsers() ([]models.User, error)
	GetUser(id uint) (*models.User, error)
	CreateUser(name, email string) (*models.User, error)

	ListBooks() ([]models.Book, error)
	GetBook(id uint) (*models.Book, error)
	CreateBook(title, author string, year int) (*models.Book, error)
	UpdateBook(id uint, title, author string, year int) (*models.Book, error)
	DeleteBook(id uint) error
	SearchBooks(q repositories.BookSearch) ([]models.Book, error)

	BorrowBook(bookID, userID uint) (*models.BorrowRecord, error)
	ReturnBook(bookID uint) (*models.Book, error)
	ListOpenBorrows(userID uint) ([]models.OpenBorrow, error)
}

// ─── Implementation ───────────────────────────────────────────────────────────

type libraryService struct {
	db         *gorm.DB
	userRepo   repositories.UserRepository
	bookRepo   repositories.BookRepository
	borrowRepo repositories.BorrowRepository
}

// NewLibraryService wires up all dependencies and returns a LibraryService.
func NewLibraryService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	bookRepo repositories.BookRepository,
	borrowRepo repositories.BorrowRepository,
) LibraryService {
	return &libraryService{
		db:         db,
		userRepo:   userRepo,
		bookRepo:   bookRepo,
		borrowRepo: borrowRepo,
	}
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (s *libraryService) ListUsers() ([]models.User, error) {
	return s.userRepo.List(nil)
}

func (s *libraryService) GetUser(id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateUser registers a new member. member_since is stamped with the current
// date; a duplicate email surfaces as ErrEmailTaken rather than a raw store
// error.
func (s *libraryService) CreateUser(name, email string) (*models.User, error) {
	user := &models.User{
		Name:        name,
		Email:       email,
		MemberSince: time.Now().UTC(),
	}
	if err := s.userRepo.Create(nil, user); err != nil {
		if isUniqueViolation(err) {
			log.Printf("[WARN] CreateUser: duplicate email %q", email)
			return nil, ErrEmailTaken
		}
		log.Printf("[ERROR] CreateUser: failed to create user %q: %v", email, err)
		return nil, err
	}
	log.Printf("[INFO] CreateUser: created user %q (id=%d)", user.Email, user.ID)
	return user, nil
}

// ─── Books ────────────────────────────────────────────────────────────────────

func (s *libraryService) ListBooks() ([]models.Book, error) {
	return s.bookRepo.List(nil)
}

func (s *libraryService) GetBook(id uint) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// CreateBook registers a new title. Status is always forced to `available`;
// callers cannot create a book already on loan.
func (s *libraryService) CreateBook(title, author string, year int) (*models.Book, error) {
	book := &models.Book{
		Title:  title,
		Author: author,
		Year:   year,
		Status: models.BookStatusAvailable,
	}
	if err := s.bookRepo.Create(nil, book); err != nil {
		log.Printf("[ERROR] CreateBook: failed to create book %q: %v", title, err)
		return nil, err
	}
	log.Printf("[INFO] CreateBook: created book %q (id=%d)", book.Title, book.ID)
	return book, nil
}

// UpdateBook overwrites title, author, and year. Status is left untouched; it
// belongs to the borrow/return flow only.
func (s *libraryService) UpdateBook(id uint, title, author string, year int) (*models.Book, error) {
	if _, err := s.bookRepo.GetByID(nil, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if err := s.bookRepo.UpdateFields(nil, id, title, author, year); err != nil {
		log.Printf("[ERROR] UpdateBook: failed to update book %d: %v", id, err)
		return nil, err
	}
	return s.bookRepo.GetByID(nil, id)
}

// DeleteBook removes a book from the catalogue. A book that is out on loan
// cannot be deleted; the row is locked so a concurrent borrow cannot slip in
// between the status check and the delete.
func (s *libraryService) DeleteBook(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if book.Status == models.BookStatusBorrowed {
			log.Printf("[WARN] DeleteBook: book %d is borrowed, refusing delete", id)
			return ErrBookBorrowed
		}
		removed, err := s.bookRepo.Delete(tx, id)
		if err != nil {
			log.Printf("[ERROR] DeleteBook: failed to delete book %d: %v", id, err)
			return err
		}
		if !removed {
			// Row vanished between the locked read and the delete.
			return ErrBookNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] DeleteBook: deleted book %d", id)
	return nil
}

// SearchBooks returns a filtered, paginated slice of the catalogue. Filters
// are conjunctive; the title match is case-insensitive substring containment.
// Results are ordered by id ascending so identical queries page consistently.
func (s *libraryService) SearchBooks(q repositories.BookSearch) ([]models.Book, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	return s.bookRepo.Search(nil, q)
}

// ─── Borrow ───────────────────────────────────────────────────────────────────

// BorrowBook implements the transactional borrow flow.
//
// Steps (all in one transaction):
//  1. Validate the user exists.
//  2. Lock the book row (FOR UPDATE) and re-check status == available. The
//     lock serializes concurrent borrows of the same book: the second
//     transaction observes `borrowed` and fails the precondition instead of
//     double-booking the item.
//  3. Flip status to `borrowed`.
//  4. Insert the borrow record with return_date = NULL.
//
// Any failure rolls the whole unit back, so status never disagrees with the
// ledger.
func (s *libraryService) BorrowBook(bookID, userID uint) (*models.BorrowRecord, error) {
	var record *models.BorrowRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.GetByID(tx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if book.Status != models.BookStatusAvailable {
			log.Printf("[WARN] BorrowBook: book %d is %s, rejecting borrow by user %d", bookID, book.Status, userID)
			return ErrBookNotAvailable
		}

		if err := s.bookRepo.UpdateStatus(tx, bookID, models.BookStatusBorrowed); err != nil {
			log.Printf("[ERROR] BorrowBook: failed to mark book %d borrowed: %v", bookID, err)
			return err
		}

		rec := &models.BorrowRecord{
			BookID:     bookID,
			UserID:     userID,
			BorrowDate: time.Now().UTC(),
		}
		if err := s.borrowRepo.Create(tx, rec); err != nil {
			log.Printf("[ERROR] BorrowBook: failed to create borrow record for book %d / user %d: %v", bookID, userID, err)
			return err
		}
		record = rec
		return nil
	})

	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] BorrowBook: borrow created (id=%d) for user %d / book %d", record.ID, userID, bookID)
	return record, nil
}

// ─── Return ───────────────────────────────────────────────────────────────────

// ReturnBook implements the transactional return flow.
//
// Steps (all in one transaction):
//  1. Lock the book row (FOR UPDATE).
//  2. Locate the most recent open borrow record. None found → ErrNoOpenBorrow
//     with status untouched, so a book already `available` cannot be
//     "returned" twice.
//  3. Stamp return_date on the ledger entry.
//  4. Flip status back to `available`.
//
// Returns the book in its post-return state.
func (s *libraryService) ReturnBook(bookID uint) (*models.Book, error) {
	var updated *models.Book

	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		open, err := s.borrowRepo.FindOpenByBook(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("[WARN] ReturnBook: no open borrow record for book %d", bookID)
				return ErrNoOpenBorrow
			}
			return err
		}

		now := time.Now().UTC()
		if err := s.borrowRepo.MarkReturned(tx, open.ID, now); err != nil {
			log.Printf("[ERROR] ReturnBook: failed to close borrow %d: %v", open.ID, err)
			return err
		}
		if err := s.bookRepo.UpdateStatus(tx, bookID, models.BookStatusAvailable); err != nil {
			log.Printf("[ERROR] ReturnBook: failed to mark book %d available: %v", bookID, err)
			return err
		}

		book.Status = models.BookStatusAvailable
		updated = book
		return nil
	})

	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] ReturnBook: book %d returned", bookID)
	return updated, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// ListOpenBorrows returns every outstanding loan for a user, with book details.
func (s *libraryService) ListOpenBorrows(userID uint) ([]models.OpenBorrow, error) {
	if _, err := s.userRepo.GetByID(nil, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.borrowRepo.ListOpenByUser(nil, userID)
}

// ─── Internal Helpers ─────────────────────────────────────────────────────────

// isUniqueViolation checks whether a unique-constraint error occurred.
// PostgreSQL reports SQLSTATE 23505; SQLite (used in tests) reports a
// "UNIQUE constraint failed" message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "UNIQUE constraint failed")
}
