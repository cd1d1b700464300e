package httpapi

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// tokenSource mints short-lived HS256 bearer tokens identifying this client.
type tokenSource struct {
	secret   []byte
	clientID string
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(secret, clientID string, ttl time.Duration) *tokenSource {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &tokenSource{secret: []byte(secret), clientID: clientID, ttl: ttl, now: time.Now}
}

// Token returns a cached token, minting a new one in the last fifth of its lifetime.
func (s *tokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-s.ttl/5)) {
		return s.token, nil
	}

	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"user_id": s.clientID,
		"iat":     now.Unix(),
		"exp":     exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	s.token, s.expires = signed, exp
	return signed, nil
}
