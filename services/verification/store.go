package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle the store runs on; inside Transaction this is the transaction.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// LatestPending returns the newest unverified code for email, or nil when there is none.
// On databases with row locks the row stays locked until the surrounding transaction ends.
func (s *Store) LatestPending(ctx context.Context, email string) (*VerificationCode, error) {
	query := s.db.WithContext(ctx).
		Where("email = ? AND verified = ?", email, false).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1)

	if supportsRowLocks(s.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var record VerificationCode
	if err := query.Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load verification code: %w", err)
	}
	return &record, nil
}

func (s *Store) Create(ctx context.Context, record *VerificationCode) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}
	return nil
}

// Refresh replaces the code on an existing row and counts it as a resend.
func (s *Store) Refresh(ctx context.Context, id uint, code string, expiresAt, sentAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&VerificationCode{}).Where("id = ?", id).Updates(map[string]any{
		"code":         code,
		"expires_at":   expiresAt,
		"last_sent_at": sentAt,
		"resend_count": gorm.Expr("COALESCE(resend_count, 0) + 1"),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to refresh verification code: %w", err)
	}
	return nil
}

func (s *Store) IncrementAttempts(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&VerificationCode{}).Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to record verification attempt: %w", err)
	}
	return nil
}

func (s *Store) MarkVerified(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&VerificationCode{}).Where("id = ?", id).
		Update("verified", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark verification code verified: %w", err)
	}
	return nil
}

// PurgeStale deletes codes that expired before cutoff and verified codes last touched
// before cutoff.
func (s *Store) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR (verified = ? AND updated_at < ?)", cutoff, true, cutoff).
		Delete(&VerificationCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge verification codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func supportsRowLocks(db *gorm.DB) bool {
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		return true
	default:
		return false
	}
}
