package verification

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrInvalidPayload      = errors.New("invalid verification payload")
	ErrCooldown            = errors.New("verification code requested too recently")
	ErrResendLimitExceeded = errors.New("verification code resend limit reached")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrExpired             = errors.New("verification code has expired")
	ErrTooManyAttempts     = errors.New("too many verification attempts")
)

// CooldownError carries how long the caller must wait before requesting another code.
type CooldownError struct {
	RetryAfterSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry after %d seconds", ErrCooldown, e.RetryAfterSeconds)
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldown
}

// InvalidCodeError is returned when a code exists but does not match.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidCode, e.AttemptsRemaining)
}

func (e *InvalidCodeError) Unwrap() error {
	return ErrInvalidCode
}
