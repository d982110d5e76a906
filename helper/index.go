package helper

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pielancer314/PizzaForPi/model"
)

var ErrInvalidClaims = errors.New("invalid token claims")

// GenerateAccessToken signs the claim with HS256.
func GenerateAccessToken(tokenClaim model.TokenClaim, secret string, ttl time.Duration) (model.TokenData, error) {
	expiresAt := time.Now().Add(ttl)

	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["userId"] = tokenClaim.UserID
	claims["username"] = tokenClaim.Username
	claims["role"] = tokenClaim.Role
	claims["exp"] = expiresAt.Unix()

	t, err := token.SignedString([]byte(secret))
	if err != nil {
		return model.TokenData{}, err
	}
	return model.TokenData{AccessToken: t, ExpiresAt: expiresAt.Unix()}, nil
}

func ParseToken(tokenString, secret string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
}

// ClaimFromToken reads the claims written by GenerateAccessToken.
func ClaimFromToken(token *jwt.Token) (model.TokenClaim, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.TokenClaim{}, ErrInvalidClaims
	}
	userID, ok := claims["userId"].(float64)
	if !ok || userID < 1 {
		return model.TokenClaim{}, fmt.Errorf("%w: userId", ErrInvalidClaims)
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	return model.TokenClaim{UserID: uint(userID), Username: username, Role: role}, nil
}
