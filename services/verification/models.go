package verification

import "time"

// VerificationCode is one issued code. Several rows may exist per email; only the newest
// unverified one is ever consulted.
type VerificationCode struct {
	ID          uint      `gorm:"primaryKey"`
	Email       string    `gorm:"size:255;not null;index"`
	Code        string    `gorm:"size:6;not null"`
	ExpiresAt   time.Time `gorm:"not null"`
	Attempts    int       `gorm:"not null;default:0"`
	ResendCount *int      `gorm:"default:0"`
	LastSentAt  time.Time `gorm:"not null"`
	Verified    bool      `gorm:"not null;default:false;index"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (VerificationCode) TableName() string {
	return "email_verification_codes"
}

// Resends treats a NULL resend_count as zero.
func (v *VerificationCode) Resends() int {
	if v.ResendCount == nil {
		return 0
	}
	return *v.ResendCount
}

// IsExpiredAt reports whether the code is past its expiry at now. A code is still
// valid at the exact instant it expires.
func (v *VerificationCode) IsExpiredAt(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
