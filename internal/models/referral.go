package models

import (
	"time"
)

type Referral struct {
	ID         uint `gorm:"primaryKey"`
	ReferrerID uint `gorm:"not null;index"`
	RefereeID  uint `gorm:"not null;uniqueIndex"`
	Valid      bool `gorm:"not null;default:false"`
	CreatedAt  time.Time
}
