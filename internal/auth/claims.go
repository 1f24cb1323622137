package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the token claims the assistant reads.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}
