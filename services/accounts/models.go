package accounts

import "time"

type Student struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash  string    `gorm:"size:255;not null" json:"-"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}
