package token

import (
	"time"

	errprocess "marketplace_messaging_service/pkg/err"

	"github.com/golang-jwt/jwt/v5"
)

// RoleType set account role
type RoleType string

const (
	// RoleAdmin is the admin role
	RoleAdmin RoleType = "admin"
	// RoleRequester is the requester role (patient / parent)
	RoleRequester RoleType = "requester"
	// RoleProvider is the provider role (daycare / practice owner)
	RoleProvider RoleType = "provider"
	// RoleStaff is the provider staff role
	RoleStaff RoleType = "staff"
)

// Claims structure for custom claims in JWT.
// The messaging core trusts these fields as the caller's identity.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Secret Key for JWT signing and validation
var (
	JWTSecret       = []byte("secure_secret_key")
	tokenExpiration = 60 * time.Minute
)

// GenerateJWT generates a JWT token
func GenerateJWT(userID, displayName, avatarURL, role, issuer string) (string, error) {
	claims := Claims{
		UserID:      userID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JWTSecret)
}

// ParseJWT parses a JWT and extracts the Claims
func ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errprocess.Set("unexpected signing method")
		}
		return JWTSecret, nil
	})

	if err != nil {
		return nil, errprocess.Wrap("parse token failed:", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errprocess.Set("invalid token")
	}

	return claims, nil
}
