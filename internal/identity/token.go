// Package identity signs outgoing requests with a bearer JWT. Only the
// narrow "mint and attach a bearer token" seam is implemented here, modeled
// on an RS256-only JWT signer -- neither HS256 nor ES256 make the cut.
package identity

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints an RS256 bearer JWT from a set of claims and a private key,
// and attaches it to outgoing requests. A zero-value Signer is not usable;
// construct one with NewSigner.
type Signer struct {
	key    *rsa.PrivateKey
	issuer string
	ttl    time.Duration

	mu       sync.Mutex
	cached   string
	expireAt time.Time
}

// NewSigner builds a Signer from a PEM-encoded RSA private key, parsed
// eagerly here instead of lazily on first Sign since this module has no
// config-file reload path to defer it for.
func NewSigner(privateKeyPEM []byte, issuer string, ttl time.Duration) (*Signer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("identity: parse private key: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Signer{key: key, issuer: issuer, ttl: ttl}, nil
}

// Sign attaches a bearer Authorization header to req, minting a fresh token
// only once the previously minted one is within a tenth of its TTL of
// expiring.
// The private key is parsed once and reused for the Signer's lifetime, but
// unlike the key, a minted token does go stale and must be refreshed.
func (s *Signer) Sign(req *http.Request) error {
	tok, err := s.token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (s *Signer) token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expireAt) {
		return s.cached, nil
	}

	now := time.Now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	bearer := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := bearer.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("identity: sign jwt: %w", err)
	}

	s.cached = signed
	// Refresh a little before the token actually expires so a request that
	// races the expiry boundary never goes out with a token the server has
	// already rejected.
	s.expireAt = exp.Add(-s.ttl / 10)
	return signed, nil
}
