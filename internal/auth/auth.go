// Package auth gates mutating endpoints behind opaque bearer tokens. The
// token table is injected at construction and read-only at runtime; there is
// no issuance or revocation here.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey is the gin context key under which the authenticated user id is
// stored.
const userIDKey = "auth.user_id"

var (
	// ErrTokenMissing is returned when the Authorization header is wholly
	// absent.
	ErrTokenMissing = errors.New("token is missing")

	// ErrTokenMalformed is returned when the header is present but not shaped
	// `Bearer <token>`.
	ErrTokenMalformed = errors.New("token format is invalid")

	// ErrTokenUnknown is returned when the token is not in the table.
	ErrTokenUnknown = errors.New("token is invalid")
)

// TokenResolver resolves an opaque bearer token to a user identity.
type TokenResolver interface {
	Resolve(token string) (userID uint, ok bool)
}

// StaticResolver is a read-only token table.
type StaticResolver struct {
	tokens map[string]uint
}

// NewStaticResolver copies the given table so the resolver cannot be mutated
// through the caller's map afterwards.
func NewStaticResolver(tokens map[string]uint) *StaticResolver {
	copied := make(map[string]uint, len(tokens))
	for token, userID := range tokens {
		copied[token] = userID
	}
	return &StaticResolver{tokens: copied}
}

func (r *StaticResolver) Resolve(token string) (uint, bool) {
	userID, ok := r.tokens[token]
	return userID, ok
}

// Identify extracts and resolves the bearer token from an Authorization
// header value. An absent header, a malformed header, and an unknown token
// are distinct failures, though all deny access.
func Identify(resolver TokenResolver, header string) (uint, error) {
	if header == "" {
		return 0, ErrTokenMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return 0, ErrTokenMalformed
	}
	userID, ok := resolver.Resolve(parts[1])
	if !ok {
		return 0, ErrTokenUnknown
	}
	return userID, nil
}

// Middleware authenticates the request and stores the resolved user id on the
// context. Once gated, handlers must take the identity from the context only,
// never from the request body.
func Middleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := Identify(resolver, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := v.(uint)
	return userID, ok
}
