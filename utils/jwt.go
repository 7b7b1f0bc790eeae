package utils

import (
	"errors"
	"time"

	"harambee/config"

	"github.com/golang-jwt/jwt"
)

// secretKey falls back to a development secret when JWT_SECRET is unset.
func secretKey() []byte {
	if config.AppConfig.JWTSecret == "" {
		return []byte("HARAMBEE-DEV")
	}
	return []byte(config.AppConfig.JWTSecret)
}

// GenerateToken creates a signed JWT token for a member id.
// The token expires after the specified duration.
func GenerateToken(memberID, mmid string, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  memberID,
		"mmid": mmid,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
}

// ExtractIDFromToken extracts the member id (subject) from a valid JWT token string.
func ExtractIDFromToken(tokenString string) (string, error) {
	token, err := ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("token does not contain a valid 'sub' claim")
	}

	return sub, nil
}
