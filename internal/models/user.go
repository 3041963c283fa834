package models

import (
	"time"
)

type User struct {
	ID             uint    `gorm:"primaryKey"`
	TelegramID     int64   `gorm:"uniqueIndex;not null"`
	Username       string  `gorm:"size:255"`
	ReferrerID     *uint   `gorm:"index"`
	PaymentID      *string `gorm:"size:255;uniqueIndex"`
	BalanceCents   int64   `gorm:"not null;default:0"`
	TotalWonCents  int64   `gorm:"not null;default:0"`
	LastWinRound   *int64
	WelcomeClaimed bool `gorm:"not null;default:false"`
	DeviceRejected bool `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentLink is append-only: a payment identifier that was ever linked to an
// account stays reserved for that account, even after the user replaces it.
type PaymentLink struct {
	ID        uint   `gorm:"primaryKey"`
	PaymentID string `gorm:"size:255;uniqueIndex;not null"`
	UserID    uint   `gorm:"not null;index"`
	CreatedAt time.Time
}
