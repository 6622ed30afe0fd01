package wizard

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the bearer token obtained at login. Claims are decoded for display
// only; the signature is never verified here.
type Session struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
}

func NewSession(token string) Session {
	s := Session{Token: token}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	if sub, err := claims.GetSubject(); err == nil {
		s.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s
}

// Expired reports whether the token carries an expiry that has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
