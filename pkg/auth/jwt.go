// Package auth issues and validates the bearer tokens used by tool dispatch's
// AuthType::Bearer scheme and by internal/httpapi's route guards. Grounded on
// applications/auth/manager.go's Manager, generalized to carry a tenant
// binding in every claim set instead of a single-tenant username/password
// store.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Claims is the token payload: subject, tenant, and role.
type Claims struct {
	Subject  string `json:"sub"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	jwt.StandardClaims
}

// ErrNoSecret is returned when a Service method is called before a signing
// secret has been configured.
var ErrNoSecret = errors.New("auth: signing secret not configured")

// Service issues and validates HS256 bearer tokens.
type Service struct {
	secret []byte
}

// NewService builds a Service signing with secret. An empty secret is
// accepted (Issue/Validate then fail with ErrNoSecret) so a misconfigured
// deployment fails at call time with a clear error rather than at startup.
func NewService(secret string) *Service {
	return &Service{secret: []byte(strings.TrimSpace(secret))}
}

// Issue returns a signed token for (subject, tenantID, role) valid for ttl
// (defaulting to one hour).
func (s *Service) Issue(subject, tenantID, role string, ttl time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	exp := time.Now().Add(ttl)
	claims := Claims{
		Subject:  subject,
		TenantID: tenantID,
		Role:     role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: exp.Unix(),
			IssuedAt:  time.Now().Unix(),
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	return signed, exp, err
}

// Validate parses and verifies tokenString, returning its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return claims, nil
}
