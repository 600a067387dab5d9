package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned by Verify for a well-signed token past its exp claim.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned by Verify for any other rejected token.
	ErrInvalid = errors.New("token invalid")
)

// Signer issues and verifies HS256 tokens the way the statistics backend does.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSigner returns a Signer for secret. A nil now uses time.Now.
func NewSigner(secret []byte, issuer string, now func() time.Time) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("hs256 requires secret")
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    now,
	}, nil
}

// Sign mints a token for userID and role, valid for ttl.
func (s *Signer) Sign(userID int64, role string, usage int, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("invalid TTL configuration")
	}
	issued := s.now()
	claims := Claims{
		UserID:     userID,
		Role:       role,
		UsageCount: usage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issued),
			Issuer:    s.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry of raw.
func (s *Signer) Verify(raw string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}
