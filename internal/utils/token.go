package utils // package utils provides helper functions for token creation

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminToken is a signed HS256 bearer token for the admin surface
// along with its expiry.
type AdminToken struct {
	Token string
	Exp   time.Time
}

// NewAdminToken builds and signs an admin JWT with subject sub and
// the given lifetime. The claims carry sub, exp and iat; the admin
// middleware verifies with the same secret.
func NewAdminToken(secret, sub string, ttl time.Duration) (AdminToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AdminToken{}, err
	}
	return AdminToken{Token: signed, Exp: exp}, nil
}
