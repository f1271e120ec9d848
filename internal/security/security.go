package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("security: hash password: %w", errHash)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateRandomString returns a hex string built from n random bytes.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("security: invalid random length: %d", n)
	}
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: read random: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}

// ErrInvalidToken indicates a JWT that failed parsing or validation.
var ErrInvalidToken = errors.New("security: invalid token")

// AdminClaims carries admin identity inside a JWT.
type AdminClaims struct {
	AdminID  uint64 `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ResellerClaims carries reseller identity inside a JWT.
type ResellerClaims struct {
	ResellerID uint64 `json:"reseller_id"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}

// SignAdminToken issues a signed admin JWT.
func SignAdminToken(secret string, expiry time.Duration, adminID uint64, username string) (string, error) {
	now := time.Now().UTC()
	claims := AdminClaims{
		AdminID:  adminID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign admin token: %w", errSign)
	}
	return signed, nil
}

// ParseAdminToken validates an admin JWT and returns its claims.
func ParseAdminToken(secret, tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if errParse := parseToken(secret, tokenString, claims, "admin"); errParse != nil {
		return nil, errParse
	}
	if claims.AdminID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignResellerToken issues a signed reseller JWT.
func SignResellerToken(secret string, expiry time.Duration, resellerID uint64, username string) (string, error) {
	now := time.Now().UTC()
	claims := ResellerClaims{
		ResellerID: resellerID,
		Username:   username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "reseller",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign reseller token: %w", errSign)
	}
	return signed, nil
}

// ParseResellerToken validates a reseller JWT and returns its claims.
func ParseResellerToken(secret, tokenString string) (*ResellerClaims, error) {
	claims := &ResellerClaims{}
	if errParse := parseToken(secret, tokenString, claims, "reseller"); errParse != nil {
		return nil, errParse
	}
	if claims.ResellerID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parseToken(secret, tokenString string, claims jwt.Claims, subject string) error {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(tokenString) == "" {
		return ErrInvalidToken
	}
	token, errParse := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithSubject(subject))
	if errParse != nil {
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
