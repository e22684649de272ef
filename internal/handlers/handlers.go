package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"library-api/internal/auth"
	"library-api/internal/hypermedia"
	"library-api/internal/repositories"
	"library-api/internal/services"
)

type LibraryHandler struct {
	svc services.LibraryService
}

func RegisterRoutes(r *gin.Engine, svc services.LibraryService, resolver auth.TokenResolver) {
	h := &LibraryHandler{svc: svc}

	r.Use(RequestID())

	// User endpoints
	r.GET("/users", h.listUsers)
	r.GET("/users/:id", h.getUser)
	r.POST("/users", h.createUser)
	r.GET("/users/:id/borrows", h.listOpenBorrows)

	// Book endpoints
	r.GET("/books", h.listBooks)
	r.GET("/books/:id", h.getBook)
	r.POST("/books", h.createBook)
	r.PUT("/books/:id", h.updateBook)
	r.DELETE("/books/:id", h.deleteBook)

	// Borrow/return endpoints: identity comes from the bearer token only.
	gated := r.Group("/", auth.Middleware(resolver))
	gated.POST("/books/:id/borrow", h.borrowBook)
	gated.POST("/books/:id/return", h.returnBook)
}

// RequestID tags every response with a correlation id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// baseURL reconstructs the external URL prefix for hypermedia links from the
// incoming request.
func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (h *LibraryHandler) listUsers(c *gin.Context) {
	users, err := h.svc.ListUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *LibraryHandler) getUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.svc.GetUser(id)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

func (h *LibraryHandler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing required fields: name, email"})
		return
	}

	user, err := h.svc.CreateUser(req.Name, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"message": "Email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *LibraryHandler) listOpenBorrows(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	borrows, err := h.svc.ListOpenBorrows(id)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, borrows)
}

// ─── Books ────────────────────────────────────────────────────────────────────

// listBooks serves both the plain collection read and the filtered search:
// term/author/year filters are conjunctive and each applies only when
// present. Defaults are page=1, limit=20.
func (h *LibraryHandler) listBooks(c *gin.Context) {
	q := repositories.BookSearch{
		Term:   c.Query("term"),
		Author: c.Query("author"),
	}
	if y := c.Query("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid year"})
			return
		}
		q.Year = year
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	books, err := h.svc.SearchBooks(q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	base := baseURL(c)
	resources := make([]hypermedia.BookResource, 0, len(books))
	for _, book := range books {
		resources = append(resources, hypermedia.BookResourceFor(book, base))
	}
	c.JSON(http.StatusOK, resources)
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	book, err := h.svc.GetBook(id)
	if err != nil {
		if errors.Is(err, services.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	resource := hypermedia.BookResourceFor(*book, baseURL(c))

	// The validator covers the link-augmented representation, so a status
	// flip invalidates cached copies even though no plain field changed.
	etag, err := hypermedia.ETag(resource)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("ETag", etag)
	c.JSON(http.StatusOK, resource)
}

type bookRequest struct {
	Title  string `json:"title" binding:"required"`
	Author string `json:"author" binding:"required"`
	Year   int    `json:"year" binding:"required"`
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing required fields: title, author, year"})
		return
	}

	book, err := h.svc.CreateBook(req.Title, req.Author, req.Year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing required fields: title, author, year"})
		return
	}

	book, err := h.svc.UpdateBook(id, req.Title, req.Author, req.Year)
	if err != nil {
		if errors.Is(err, services.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteBook(id); err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Book not found"})
		case errors.Is(err, services.ErrBookBorrowed):
			c.JSON(http.StatusConflict, gin.H{"message": "Cannot delete a borrowed book"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book has been deleted"})
}

// ─── Borrow / Return ──────────────────────────────────────────────────────────

func (h *LibraryHandler) borrowBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": auth.ErrTokenMissing.Error()})
		return
	}

	_, err := h.svc.BorrowBook(id, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Book not found"})
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		case errors.Is(err, services.ErrBookNotAvailable):
			// Echo the book's current state so the client can see which
			// action is actually on offer.
			if book, getErr := h.svc.GetBook(id); getErr == nil {
				c.JSON(http.StatusConflict, gin.H{
					"message":       "Book is not available",
					"current_state": hypermedia.BookResourceFor(*book, baseURL(c)),
				})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"message": "Book is not available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return
	}

	book, err := h.svc.GetBook(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, hypermedia.BookResourceFor(*book, baseURL(c)))
}

func (h *LibraryHandler) returnBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	book, err := h.svc.ReturnBook(id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Book not found"})
		case errors.Is(err, services.ErrNoOpenBorrow):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Could not find an active borrow record"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, hypermedia.BookResourceFor(*book, baseURL(c)))
}
