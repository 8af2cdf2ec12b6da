package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// API tokens let non-browser clients (scripts, shortcut automations)
// log check-ins without a session cookie.
const apiTokenTTL = 90 * 24 * time.Hour

type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

type apiClaims struct {
	jwt.RegisteredClaims
	TokenName string `json:"name,omitempty"`
}

// Issue signs a new API token for a user. The returned string is the
// only copy; tokens are not persisted server-side.
func (t *TokenIssuer) Issue(userID int64, name string) (string, error) {
	now := time.Now().UTC()
	claims := apiClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(apiTokenTTL)),
			Issuer:    "habitat",
		},
		TokenName: name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user ID it was
// issued for.
func (t *TokenIssuer) Verify(tokenString string) (int64, error) {
	var claims apiClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer("habitat"), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return 0, fmt.Errorf("parse subject %q: %w", claims.Subject, err)
	}
	return userID, nil
}
