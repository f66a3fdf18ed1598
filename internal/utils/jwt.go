package utils

import (
	"errors" // Error values
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// Token types carried in the "typ" claim
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// ErrWrongTokenType is returned when a refresh token is used as access token or vice versa
var ErrWrongTokenType = errors.New("wrong token type")

// JWT Claims
type Claims struct {
	UserID               uint   `json:"user_id"` // Custom claim for user ID
	Role                 string `json:"role"`    // Role at issue time
	TokenType            string `json:"typ"`     // access or refresh
	jwt.RegisteredClaims                         // Standard JWT claims
}

// TokenPair is returned by login
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GenerateJWT creates a signed token of the given type for a user
func GenerateJWT(userID uint, role, tokenType, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// GenerateTokenPair issues an access and a refresh token
func GenerateTokenPair(userID uint, role, secret string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	access, err := GenerateJWT(userID, role, TokenAccess, secret, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := GenerateJWT(userID, role, TokenRefresh, secret, refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseJWT parses and validates a token string of the expected type
func ParseJWT(tokenStr, secret, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
