package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when a caller does not specify a lifetime.
const DefaultTokenTTL = 30 * time.Minute

// ErrInvalidToken is returned by Decode for any token that fails
// verification: bad signature, malformed structure, missing subject, or
// expiry in the past. Callers cannot distinguish the causes.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload embedded in an access token.
type Claims struct {
	// Scopes are the capability tags granted when the token was issued.
	Scopes []string `json:"scopes"`

	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens with a process-wide symmetric
// secret. The secret is set once at startup and never mutated; rotating
// it invalidates every outstanding token.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec constructs a Codec. ttl is the default token lifetime used
// by IssueDefault; a non-positive ttl falls back to DefaultTokenTTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue signs an HS256 token carrying the subject, the granted scopes,
// and an absolute expiry of now+ttl. A non-positive ttl falls back to
// DefaultTokenTTL.
func (c *Codec) Issue(sub string, scopes []string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// IssueDefault signs a token with the codec's configured lifetime.
func (c *Codec) IssueDefault(sub string, scopes []string) (string, error) {
	return c.Issue(sub, scopes, c.ttl)
}

// Decode verifies the token's signature and expiry and returns its
// claims. Any failure is reported as ErrInvalidToken.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
