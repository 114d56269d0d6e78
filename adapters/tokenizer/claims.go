package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the user class, so the
// transport layer can route ops/client checks without a store lookup.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserType string `json:"utype"`
}
