package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-pos-engine/internal/config"
	"go-pos-engine/internal/models"
)

// Claims defines what is inside the token (The "ID Card")
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin is the only authorization capability the engine consumes.
func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// TokenIssuer signs and checks HS256 tokens with the configured secret.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(cfg config.JWT) *TokenIssuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{key: []byte(cfg.Secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a signed JWT for a user
func (i *TokenIssuer) GenerateToken(userID uint, role string) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.key)
}

// ValidateToken checks if a token is fake or expired
func (i *TokenIssuer) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
