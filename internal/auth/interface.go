package auth

// JWTVerifier validates bearer tokens. Keeping it an interface lets the
// middleware run with a fake in tests.
type JWTVerifier interface {
	// VerifyToken returns the claims of a valid token, or domain.ErrUnauthorized.
	VerifyToken(tokenString string) (*Claims, error)

	// Close releases resources held by the verifier.
	Close() error
}
