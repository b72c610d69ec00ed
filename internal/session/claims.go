package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/pkg/domain"
)

// tokenClaims is the part of an access token the client reads. The
// signature is not checked here: the backend verifies every request.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func parseClaims(raw string) (*tokenClaims, bool) {
	if raw == "" {
		return nil, false
	}
	var c tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &c); err != nil {
		return nil, false
	}
	return &c, true
}

// expiry returns when the session's access token stops being accepted.
// The token's own exp claim wins over the stored ExpiresAt.
func expiry(s *domain.Session) time.Time {
	if c, ok := parseClaims(s.AccessToken); ok && c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return s.ExpiresAt
}

// normalize fills fields a stored or refreshed session may lack from the
// access token's claims.
func normalize(s *domain.Session) *domain.Session {
	cp := *s
	cp.ExpiresAt = expiry(s)
	if c, ok := parseClaims(s.AccessToken); ok {
		if cp.User.ID == uuid.Nil {
			if id, err := uuid.Parse(c.Subject); err == nil {
				cp.User.ID = id
			}
		}
		if cp.User.Email == "" {
			cp.User.Email = c.Email
		}
	}
	return &cp
}
