// Package auth issues and verifies the bearer tokens that carry a caller's
// role and organization.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/energysys/dashboard/internal/access"
	"github.com/energysys/dashboard/internal/model"
)

var (
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrInvalidCredentials is returned when a username or password does
	// not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Claims represents JWT claims.
type Claims struct {
	Role  string `json:"role"`
	OrgID int64  `json:"org_id"`
	jwt.RegisteredClaims
}

// Session is the verified identity of a request. ID is unique per token
// and keys per-session view state.
type Session struct {
	ID             string
	UserID         int64
	Username       string
	Role           access.Role
	OrganizationID int64
	ExpiresAt      time.Time
}

// SuperAdmin reports whether the session sees every organization.
func (s Session) SuperAdmin() bool { return s.Role == access.RoleSuperAdmin }

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer for secret with the given token lifetime.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a signed token for u.
func (i *Issuer) Issue(u model.User) (string, *Session, error) {
	now := i.now()
	claims := Claims{
		Role:  string(access.Resolve(access.Role(u.Role))),
		OrgID: u.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Username,
			Audience:  jwt.ClaimStrings{strconv.FormatInt(u.ID, 10)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, sessionFrom(&claims), nil
}

// Parse verifies token and returns the session it carries.
func (i *Issuer) Parse(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or token id", ErrInvalidToken)
	}
	return sessionFrom(claims), nil
}

func sessionFrom(c *Claims) *Session {
	s := &Session{
		ID:             c.ID,
		Username:       c.Subject,
		Role:           access.Resolve(access.Role(c.Role)),
		OrganizationID: c.OrgID,
	}
	if len(c.Audience) > 0 {
		s.UserID, _ = strconv.ParseInt(c.Audience[0], 10, 64)
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}
