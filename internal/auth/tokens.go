// internal/auth/tokens.go
// JWT minting and validation for API and websocket handshakes

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims carries the identity fields embedded in access tokens
type Claims struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"` // "user" or "admin"
	Type     string `json:"type"` // "access" or "refresh"
}

// TokenManager validates JWT tokens against a shared secret
type TokenManager struct {
	secret string
}

// NewTokenManager creates a new token manager
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: secret}
}

// Generate signs a token of the given type ("access" or "refresh") for the user
func (t *TokenManager) Generate(user *User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"role":     user.Role,
		"type":     tokenType,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(t.secret))
}

// Validate parses and verifies a token string and returns its claims
func (t *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	userID, err := parseUserID(claims)
	if err != nil {
		return nil, err
	}

	return &Claims{
		UserID:   userID,
		Email:    stringClaim(claims, "email"),
		Username: stringClaim(claims, "username"),
		Role:     stringClaim(claims, "role"),
		Type:     stringClaim(claims, "type"),
	}, nil
}

// parseUserID accepts either a string or numeric user_id claim
func parseUserID(claims jwt.MapClaims) (int64, error) {
	switch v := claims["user_id"].(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, errors.New("invalid user_id format")
		}
		return id, nil
	case float64:
		return int64(v), nil
	default:
		return 0, errors.New("invalid user_id in token")
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
