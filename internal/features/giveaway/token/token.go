package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	apperrors "giveaway-core-backend/internal/common/errors"
)

const (
	// 32 random bytes gives 256 bits of entropy; base64url without
	// padding encodes to 43 characters.
	tokenBytes = 32

	// ResultTokenLength is the encoded length of every issued token.
	ResultTokenLength = 43

	defaultMaxAttempts = 5
)

// ExistsFunc reports whether a token is already taken. The store's
// uniqueness constraint remains the final authority; this check only
// keeps the bounded-retry loop honest.
type ExistsFunc func(ctx context.Context, token string) (bool, error)

// Issuer generates result tokens for public, unauthenticated result
// lookups.
type Issuer struct {
	maxAttempts int
}

func NewIssuer() *Issuer {
	return &Issuer{maxAttempts: defaultMaxAttempts}
}

// NewResultToken issues a fresh token, retrying on collisions up to the
// attempt budget. A collision is astronomically unlikely; running out of
// attempts fails with EXHAUSTED.
func (i *Issuer) NewResultToken(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		t, err := generate()
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "token generation failed")
		}

		taken, err := exists(ctx, t)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "token uniqueness check failed")
		}
		if !taken {
			return t, nil
		}
	}

	return "", apperrors.Newf(apperrors.ErrCodeExhausted,
		"unable to generate unique result token after %d attempts", i.maxAttempts)
}

func generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidFormat reports whether s looks like an issued result token:
// exact length, URL-safe base64 alphabet.
func ValidFormat(s string) bool {
	if len(s) != ResultTokenLength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
