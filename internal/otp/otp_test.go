package otp

import (
	"context"
	"testing"

	"dontcare/internal/cache"
	apperrors "dontcare/internal/errors"
)

func newTestStore() *Store {
	return NewStore(cache.NewMemoryCache())
}

func TestGenerateAndVerify(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	code, err := s.Generate(ctx, PurposeSignup, "a@b.c")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	if err := s.Verify(ctx, PurposeSignup, "a@b.c", code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	verified, err := s.IsVerified(ctx, PurposeSignup, "a@b.c")
	if err != nil || !verified {
		t.Errorf("expected verified, got %v err=%v", verified, err)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	code, err := s.Generate(ctx, PurposeSignup, "a@b.c")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	err = s.Verify(ctx, PurposeSignup, "a@b.c", wrong)
	if err == nil {
		t.Fatal("expected wrong code to fail")
	}
	if app := apperrors.GetAppError(err); app == nil || app.Code != apperrors.ErrCodeOTPInvalid {
		t.Errorf("expected OTP_INVALID, got %v", err)
	}

	// correct code still works after one failure
	if err := s.Verify(ctx, PurposeSignup, "a@b.c", code); err != nil {
		t.Errorf("correct code should still verify: %v", err)
	}
}

func TestVerifyMaxAttempts(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	code, err := s.Generate(ctx, PurposeSignup, "a@b.c")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	var last error
	for i := 0; i < 5; i++ {
		last = s.Verify(ctx, PurposeSignup, "a@b.c", wrong)
		if last == nil {
			t.Fatal("wrong code unexpectedly verified")
		}
	}
	if app := apperrors.GetAppError(last); app == nil || app.Code != apperrors.ErrCodeOTPTooManyAttempts {
		t.Errorf("expected OTP_TOO_MANY_ATTEMPTS on fifth failure, got %v", last)
	}

	// record deleted; even the correct code now reports expired
	err = s.Verify(ctx, PurposeSignup, "a@b.c", code)
	if app := apperrors.GetAppError(err); app == nil || app.Code != apperrors.ErrCodeOTPExpired {
		t.Errorf("expected OTP_EXPIRED after deletion, got %v", err)
	}
}

func TestVerifyMissing(t *testing.T) {
	s := newTestStore()

	err := s.Verify(context.Background(), PurposeSignup, "nobody@b.c", "123456")
	if app := apperrors.GetAppError(err); app == nil || app.Code != apperrors.ErrCodeOTPExpired {
		t.Errorf("expected OTP_EXPIRED for missing record, got %v", err)
	}
}

func TestPurposesAreIsolated(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	code, err := s.Generate(ctx, PurposeSignup, "a@b.c")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// a signup code must not verify for password reset
	err = s.Verify(ctx, PurposePasswordReset, "a@b.c", code)
	if app := apperrors.GetAppError(err); app == nil || app.Code != apperrors.ErrCodeOTPExpired {
		t.Errorf("expected OTP_EXPIRED for other purpose, got %v", err)
	}
}

func TestConsume(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	code, _ := s.Generate(ctx, PurposeSignup, "a@b.c")
	if err := s.Verify(ctx, PurposeSignup, "a@b.c", code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if err := s.Consume(ctx, PurposeSignup, "a@b.c"); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	verified, err := s.IsVerified(ctx, PurposeSignup, "a@b.c")
	if err != nil {
		t.Fatalf("IsVerified failed: %v", err)
	}
	if verified {
		t.Error("expected record to be gone after consume")
	}
}

func TestGenerateReplacesPrevious(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	first, _ := s.Generate(ctx, PurposeSignup, "a@b.c")
	second, _ := s.Generate(ctx, PurposeSignup, "a@b.c")

	if first == second {
		t.Skip("codes collided; cannot distinguish")
	}

	if err := s.Verify(ctx, PurposeSignup, "a@b.c", first); err == nil {
		t.Error("old code should no longer verify")
	}
	if err := s.Verify(ctx, PurposeSignup, "a@b.c", second); err != nil {
		t.Errorf("new code should verify: %v", err)
	}
}
