package repositories

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-api/internal/models"
)

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	List(db *gorm.DB) ([]models.User, error)
	GetByID(db *gorm.DB, id uint) (*models.User, error)
}

// BookSearch holds the optional conjunctive filters for Search. Zero values
// mean "filter not applied".
type BookSearch struct {
	Term   string // case-insensitive substring match against title
	Author string // exact match
	Year   int    // exact match
	Page   int    // 1-based
	Limit  int
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	List(db *gorm.DB) ([]models.Book, error)
	GetByID(db *gorm.DB, id uint) (*models.Book, error)
	GetByIDForUpdate(db *gorm.DB, id uint) (*models.Book, error)
	UpdateFields(db *gorm.DB, id uint, title, author string, year int) error
	UpdateStatus(db *gorm.DB, id uint, status models.BookStatus) error
	Delete(db *gorm.DB, id uint) (bool, error)
	Search(db *gorm.DB, q BookSearch) ([]models.Book, error)
}

type BorrowRepository interface {
	Create(db *gorm.DB, record *models.BorrowRecord) error
	FindOpenByBook(db *gorm.DB, bookID uint) (*models.BorrowRecord, error)
	MarkReturned(db *gorm.DB, borrowID uint, returnedAt time.Time) error
	ListOpenByUser(db *gorm.DB, userID uint) ([]models.OpenBorrow, error)
}

// concrete implementations

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(db *gorm.DB, user *models.User) error {
	if db == nil {
		db = r.db
	}
	return db.Create(user).Error
}

func (r *userRepository) List(db *gorm.DB) ([]models.User, error) {
	if db == nil {
		db = r.db
	}
	var users []models.User
	if err := db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) GetByID(db *gorm.DB, id uint) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) List(db *gorm.DB) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	var books []models.Book
	if err := db.Order("id ASC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) GetByID(db *gorm.DB, id uint) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) GetByIDForUpdate(db *gorm.DB, id uint) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	// SQLite serializes writers on its own and rejects FOR UPDATE, so the
	// row lock is only issued against postgres.
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) UpdateFields(db *gorm.DB, id uint, title, author string, year int) error {
	if db == nil {
		db = r.db
	}
	// Status is deliberately not part of the update set.
	return db.Model(&models.Book{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":  title,
			"author": author,
			"year":   year,
		}).Error
}

func (r *bookRepository) UpdateStatus(db *gorm.DB, id uint, status models.BookStatus) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Book{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *bookRepository) Delete(db *gorm.DB, id uint) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Delete(&models.Book{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *bookRepository) Search(db *gorm.DB, q BookSearch) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	query := db.Model(&models.Book{})
	if q.Term != "" {
		query = query.Where("LOWER(title) LIKE LOWER(?)", "%"+q.Term+"%")
	}
	if q.Author != "" {
		query = query.Where("author = ?", q.Author)
	}
	if q.Year != 0 {
		query = query.Where("year = ?", q.Year)
	}

	// Stable pagination requires a deterministic order; the store gives none
	// otherwise.
	offset := (q.Page - 1) * q.Limit
	var books []models.Book
	err := query.
		Order("id ASC").
		Offset(offset).
		Limit(q.Limit).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

type borrowRepository struct {
	db *gorm.DB
}

func NewBorrowRepository(db *gorm.DB) BorrowRepository {
	return &borrowRepository{db: db}
}

func (r *borrowRepository) Create(db *gorm.DB, record *models.BorrowRecord) error {
	if db == nil {
		db = r.db
	}
	return db.Create(record).Error
}

func (r *borrowRepository) FindOpenByBook(db *gorm.DB, bookID uint) (*models.BorrowRecord, error) {
	if db == nil {
		db = r.db
	}
	var record models.BorrowRecord
	err := db.
		Where("book_id = ? AND return_date IS NULL", bookID).
		Order("borrow_id DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *borrowRepository) MarkReturned(db *gorm.DB, borrowID uint, returnedAt time.Time) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.BorrowRecord{}).
		Where("borrow_id = ? AND return_date IS NULL", borrowID).
		Update("return_date", returnedAt).
		Error
}

func (r *borrowRepository) ListOpenByUser(db *gorm.DB, userID uint) ([]models.OpenBorrow, error) {
	if db == nil {
		db = r.db
	}
	var rows []models.OpenBorrow
	err := db.Model(&models.BorrowRecord{}).
		Select("borrows.borrow_id, borrows.book_id, books.title, books.author, books.year, borrows.borrow_date").
		Joins("JOIN books ON books.id = borrows.book_id").
		Where("borrows.user_id = ? AND borrows.return_date IS NULL", userID).
		Order("borrows.borrow_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
