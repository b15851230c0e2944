package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/internal/emailaddr"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrWeakPassword          = errors.New("password does not meet requirements")
	ErrEmailTaken            = errors.New("email is already registered")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

type Service struct {
	config *config.AccountsConfig
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.AccountsConfig, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, s.config.MinPasswordLength)
	}
	// bcrypt silently ignores everything past 72 bytes.
	if len(password) > 72 {
		return fmt.Errorf("%w: must be at most 72 bytes long", ErrWeakPassword)
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

// Register creates an unverified student account.
func (s *Service) Register(ctx context.Context, rawEmail, password string) (*Student, error) {
	email, ok := emailaddr.Parse(rawEmail)
	if !ok {
		return nil, ErrInvalidEmail
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&Student{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing student: %w", err)
	}
	if count > 0 {
		s.logger.Info("registration rejected, email taken", zap.String("email", email))
		return nil, ErrEmailTaken
	}

	student := &Student{Email: email, PasswordHash: hash}
	if err := db.Create(student).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	s.logger.Info("student registered", zap.String("email", email), zap.Uint("student_id", student.ID))
	return student, nil
}

// MarkEmailVerified flags the account owning email as verified using the caller's
// transaction. An email with no account is not an error.
func (s *Service) MarkEmailVerified(tx *gorm.DB, email string) error {
	result := tx.Model(&Student{}).Where("email = ?", email).Update("email_verified", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark email verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debug("no student account for verified email", zap.String("email", email))
	}
	return nil
}
