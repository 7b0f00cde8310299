package token

import (
	"fmt"

	"github.com/cognitoemu/cognito-emu/internal/keystore"
	"github.com/golang-jwt/jwt/v5"
)

// Verify parses and verifies tokenString against keys, returning its
// claims. Used by tests asserting property 3 of spec.md §8 and by any
// verifier embedding this module directly instead of fetching JWKS over
// HTTP.
func Verify(tokenString string, keys *keystore.KeyStore) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return keys.PublicKey(), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
