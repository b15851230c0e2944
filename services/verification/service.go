package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/internal/emailaddr"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountVerifier flags the account that owns an email once its code is confirmed.
// It must use tx so the account flag and the code flag commit together.
type AccountVerifier interface {
	MarkEmailVerified(tx *gorm.DB, email string) error
}

type IssueResult struct {
	ExpiresAt        time.Time
	ExpiresInSeconds int
}

type Service struct {
	config   *config.VerificationConfig
	store    *Store
	sender   Sender
	accounts AccountVerifier
	metrics  *metrics.Service
	logger   *logging.Service
	locks    *keyedMutex
	now      func() time.Time
}

type Option func(*Service)

// WithSender replaces the delivery transport entirely.
func WithSender(sender Sender) Option {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

func WithAccounts(accounts AccountVerifier) Option {
	return func(s *Service) { s.accounts = accounts }
}

func WithMetrics(m *metrics.Service) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cfg *config.VerificationConfig, db *gorm.DB, logger *logging.Service, opts ...Option) *Service {
	s := &Service{
		config: cfg,
		store:  NewStore(db),
		sender: NewLogSender(logger),
		logger: logger,
		locks:  newKeyedMutex(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Store() *Store {
	return s.store
}

// IssueCode creates or refreshes the pending code for an email and hands it to the
// sender. Delivery failures are logged and never undo the stored code.
func (s *Service) IssueCode(ctx context.Context, rawEmail string) (*IssueResult, error) {
	email, ok := emailaddr.Parse(rawEmail)
	if !ok {
		s.metrics.VerificationIssued("invalid_email")
		return nil, ErrInvalidEmail
	}

	unlock := s.locks.Lock(email)
	code, expiresAt, now, err := s.storeNewCode(ctx, email)
	unlock()
	if err != nil {
		s.metrics.VerificationIssued(issueOutcome(err))
		return nil, err
	}

	if err := s.sender.SendVerificationCode(ctx, email, code, s.config.CodeTTL); err != nil {
		s.logger.Error("failed to deliver verification code",
			zap.String("email", email),
			zap.Error(err))
	}

	s.metrics.VerificationIssued("sent")
	return &IssueResult{
		ExpiresAt:        expiresAt,
		ExpiresInSeconds: ceilSeconds(expiresAt.Sub(now)),
	}, nil
}

func (s *Service) storeNewCode(ctx context.Context, email string) (code string, expiresAt, now time.Time, err error) {
	now = s.now().UTC()
	var rejection error

	err = s.store.Transaction(ctx, func(tx *Store) error {
		existing, err := tx.LatestPending(ctx, email)
		if err != nil {
			return err
		}

		if existing != nil {
			if wait := s.config.Cooldown - now.Sub(existing.LastSentAt); wait > 0 {
				rejection = &CooldownError{RetryAfterSeconds: ceilSeconds(wait)}
				s.logger.Info("verification code requested during cooldown",
					zap.String("email", email),
					zap.Duration("retry_after", wait))
				return nil
			}
			if now.Before(existing.ExpiresAt) && existing.Resends() >= s.config.MaxResends {
				rejection = ErrResendLimitExceeded
				s.logger.Info("verification code resend limit reached",
					zap.String("email", email),
					zap.Int("resend_count", existing.Resends()))
				return nil
			}
		}

		// A resend never repeats the code it replaces.
		for code == "" || (existing != nil && code == existing.Code) {
			if code, err = GenerateCode(); err != nil {
				return err
			}
		}
		expiresAt = now.Add(s.config.CodeTTL)

		if existing != nil && now.Before(existing.ExpiresAt) {
			s.logger.Info("refreshing verification code",
				zap.String("email", email),
				zap.Uint("record_id", existing.ID),
				zap.Int("resend_count", existing.Resends()+1))
			return tx.Refresh(ctx, existing.ID, code, expiresAt, now)
		}

		zero := 0
		record := &VerificationCode{
			Email:       email,
			Code:        code,
			ExpiresAt:   expiresAt,
			ResendCount: &zero,
			LastSentAt:  now,
			CreatedAt:   now,
		}
		if err := tx.Create(ctx, record); err != nil {
			return err
		}
		s.logger.Info("verification code created",
			zap.String("email", email),
			zap.Uint("record_id", record.ID))
		return nil
	})
	if err != nil {
		s.logger.Error("failed to issue verification code", zap.String("email", email), zap.Error(err))
		return "", time.Time{}, now, err
	}
	if rejection != nil {
		return "", time.Time{}, now, rejection
	}
	return code, expiresAt, now, nil
}

// VerifyCode checks code against the newest pending code for email. A wrong code is
// counted against the record even though the call fails.
func (s *Service) VerifyCode(ctx context.Context, rawEmail, rawCode string) error {
	email, ok := emailaddr.Parse(rawEmail)
	code := strings.TrimSpace(rawCode)
	if !ok || !ValidCodeFormat(code) {
		s.metrics.VerificationChecked("invalid_payload")
		return ErrInvalidPayload
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	now := s.now().UTC()
	var outcome error

	err := s.store.Transaction(ctx, func(tx *Store) error {
		record, err := tx.LatestPending(ctx, email)
		if err != nil {
			return err
		}

		switch {
		case record == nil:
			outcome = ErrInvalidCode
			s.logger.Info("verification attempted without pending code", zap.String("email", email))
			return nil
		case record.IsExpiredAt(now):
			outcome = ErrExpired
			s.logger.Info("verification code expired",
				zap.String("email", email),
				zap.Uint("record_id", record.ID))
			return nil
		case record.Attempts >= s.config.MaxAttempts:
			outcome = ErrTooManyAttempts
			s.logger.Warn("verification attempts exhausted",
				zap.String("email", email),
				zap.Uint("record_id", record.ID))
			return nil
		}

		if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
			if err := tx.IncrementAttempts(ctx, record.ID); err != nil {
				return err
			}
			attempts := record.Attempts + 1
			outcome = &InvalidCodeError{AttemptsRemaining: max(0, s.config.MaxAttempts-attempts)}
			s.logger.Info("verification code mismatch",
				zap.String("email", email),
				zap.Uint("record_id", record.ID),
				zap.Int("attempts", attempts))
			return nil
		}

		if err := tx.MarkVerified(ctx, record.ID); err != nil {
			return err
		}
		if s.accounts != nil {
			if err := s.accounts.MarkEmailVerified(tx.DB(), email); err != nil {
				return err
			}
		}
		s.logger.Info("email verified",
			zap.String("email", email),
			zap.Uint("record_id", record.ID))
		return nil
	})
	if err != nil {
		s.logger.Error("failed to verify email code", zap.String("email", email), zap.Error(err))
		s.metrics.VerificationChecked("error")
		return err
	}

	s.metrics.VerificationChecked(checkOutcome(outcome))
	return outcome
}

func issueOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, ErrResendLimitExceeded):
		return "resend_limit"
	default:
		return "error"
	}
}

func checkOutcome(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	default:
		return "error"
	}
}
