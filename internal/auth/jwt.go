package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"retail-order-service/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the caller of an authenticated request
type Claims struct {
	Role    string `json:"role"`
	ShopID  int64  `json:"shopid,omitempty"`
	AdminID int64  `json:"adminid,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token belongs to an administrator
func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// AccountID returns the numeric account id carried in the subject
func (c *Claims) AccountID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// Manager signs and verifies HS256 login tokens
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a token manager
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the account
func (m *Manager) Issue(a *models.Account) (string, error) {
	now := m.now()
	claims := &Claims{
		Role: a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(a.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if a.ShopID != nil {
		claims.ShopID = *a.ShopID
	}
	if a.AdminID != nil {
		claims.AdminID = *a.AdminID
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Parse verifies a token and returns its claims
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
