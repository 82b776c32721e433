package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of a plaintext password. The
// encoding is self-describing (algorithm version, cost, and salt are
// embedded), so hashes produced under older cost parameters keep
// verifying after the cost changes.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether the plaintext password matches the
// stored hash. The comparison is constant time. A malformed stored hash
// verifies as false rather than surfacing an error; the caller only
// ever learns that authentication failed.
func VerifyPassword(password, hashedPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
