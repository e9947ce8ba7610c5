package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

const downloadAudience = "export-download"

// DownloadClaims binds a download token to one export job and storage key.
type DownloadClaims struct {
	JobID string `json:"jid"`
	Key   string `json:"key"`
	jwt.RegisteredClaims
}

// SignedURLSigner issues short lived HS256 download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token for jobID and key plus its expiry.
func (s *SignedURLSigner) Generate(jobID, key string) (string, time.Time, error) {
	if jobID == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("job id and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issued := s.now()
	expiresAt := issued.Add(s.ttl).Truncate(time.Second)
	claims := DownloadClaims{
		JobID: jobID,
		Key:   key,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{downloadAudience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies token. allowExpired skips the expiry check for cleanup.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (*DownloadClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(downloadAudience),
		jwt.WithTimeFunc(s.now),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &DownloadClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.JobID == "" || claims.Key == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
