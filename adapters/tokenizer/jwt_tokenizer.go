package tokenizer

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

const AudienceAccess = "session:access"

// JWTTokenizer implements the SessionTokenizer interface using HS256 JWTs.
type JWTTokenizer struct {
	secret []byte
	ttl    time.Duration
	clock  ports.Clock
}

// NewJWTTokenizer creates a new JWT tokenizer.
func NewJWTTokenizer(secret []byte, ttl time.Duration, clock ports.Clock) ports.SessionTokenizer {
	return &JWTTokenizer{secret: secret, ttl: ttl, clock: clock}
}

// AccessToken signs a short-lived access token for the user.
func (j *JWTTokenizer) AccessToken(user *core.User) (string, error) {
	now := j.clock.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		UserType: string(user.Type),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// Subject verifies an access token and returns the user ID it was issued to.
func (j *JWTTokenizer) Subject(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithAudience(AudienceAccess),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", core.ErrInvalidCredentials
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims type")
	}
	return claims.Subject, nil
}
