package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"dontcare/internal/cache"
	apperrors "dontcare/internal/errors"
)

// Purposes an OTP can be issued for
const (
	PurposeSignup        = "signup"
	PurposePasswordReset = "password_reset"
)

const (
	codeLength      = 6
	ttl             = 10 * time.Minute
	maxAttempts     = 5
	pbkdf2Iters     = 100_000
	pbkdf2KeyLength = 32
	saltLength      = 16
)

// Store issues and verifies one-time codes kept in the cache with a TTL.
// Codes are stored PBKDF2-hashed; plaintext only exists in the email.
type Store struct {
	cache cache.Cacher
}

// NewStore creates an OTP store on the given cache
func NewStore(c cache.Cacher) *Store {
	return &Store{cache: c}
}

type record struct {
	Hash     string `json:"hash"`
	Salt     string `json:"salt"`
	Attempts int    `json:"attempts"`
	Verified bool   `json:"verified"`
}

func key(purpose, email string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, email)
}

// Generate creates a 6-digit code, stores its hash under the purpose and
// email, and returns the plaintext for delivery. Any previous code for
// the same purpose and email is replaced.
func (s *Store) Generate(ctx context.Context, purpose, email string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	rec := record{
		Hash: hashCode(code, salt),
		Salt: hex.EncodeToString(salt),
	}
	if err := s.cache.Set(ctx, key(purpose, email), rec, ttl); err != nil {
		return "", apperrors.WrapError(err, apperrors.ErrCodeCacheOperation, "failed to store OTP")
	}

	return code, nil
}

// Verify checks a submitted code. On success the record is rewritten with
// verified=true, preserving the remaining TTL so completion flows can
// confirm it later. After maxAttempts failures the code is deleted.
func (s *Store) Verify(ctx context.Context, purpose, email, code string) error {
	k := key(purpose, email)

	var rec record
	err := s.cache.Get(ctx, k, &rec)
	if err == cache.ErrCacheMiss {
		return apperrors.NewAppError(apperrors.ErrCodeOTPExpired, "Verification code expired or not found", nil)
	}
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCacheOperation, "failed to load OTP")
	}

	salt, err := hex.DecodeString(rec.Salt)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrCodeInternal, "Corrupt verification record", err)
	}

	remaining, err := s.cache.TTL(ctx, k)
	if err != nil || remaining <= 0 {
		remaining = ttl
	}

	if !hmac.Equal([]byte(hashCode(code, salt)), []byte(rec.Hash)) {
		rec.Attempts++
		if rec.Attempts >= maxAttempts {
			_ = s.cache.Delete(ctx, k)
			return apperrors.NewAppError(apperrors.ErrCodeOTPTooManyAttempts, "Too many failed attempts, request a new code", nil)
		}
		_ = s.cache.Set(ctx, k, rec, remaining)
		return apperrors.NewAppErrorWithDetails(apperrors.ErrCodeOTPInvalid, "Invalid verification code",
			fmt.Sprintf("%d attempts remaining", maxAttempts-rec.Attempts), nil)
	}

	rec.Verified = true
	if err := s.cache.Set(ctx, k, rec, remaining); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeCacheOperation, "failed to mark OTP verified")
	}

	return nil
}

// IsVerified reports whether a verified code exists for purpose and email
func (s *Store) IsVerified(ctx context.Context, purpose, email string) (bool, error) {
	var rec record
	err := s.cache.Get(ctx, key(purpose, email), &rec)
	if err == cache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, apperrors.WrapError(err, apperrors.ErrCodeCacheOperation, "failed to load OTP")
	}
	return rec.Verified, nil
}

// Consume deletes the record; completion flows call this after use
func (s *Store) Consume(ctx context.Context, purpose, email string) error {
	return s.cache.Delete(ctx, key(purpose, email))
}

func randomCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}

func hashCode(code string, salt []byte) string {
	dk := pbkdf2.Key([]byte(code), salt, pbkdf2Iters, pbkdf2KeyLength, sha256.New)
	return hex.EncodeToString(dk)
}
