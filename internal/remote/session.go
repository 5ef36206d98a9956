package remote

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = time.Hour

// mintToken signs a short-lived HS256 session token for the backend. The
// signing secret is the account's service secret; the backend verifies
// it with the same key.
func mintToken(accountID, email, secret string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		Issuer:    "nestling",
		Audience:  jwt.ClaimStrings{"nestling-backend"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["email"] = email
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// tokenValid reports whether a previously minted token is still usable,
// with a minute of slack so a token never expires mid-request.
func tokenValid(token, secret string, now time.Time) bool {
	if token == "" {
		return false
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time {
		return now.Add(time.Minute)
	}))
	_, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	return err == nil
}
