package models

import (
	"time"
)

// Round rows are archived, never deleted: ending a round stamps EndedAt and
// opens the next number, so past tickets simply fall out of scope.
type Round struct {
	ID         uint  `gorm:"primaryKey"`
	Number     int64 `gorm:"uniqueIndex;not null"`
	PrizeCents int64 `gorm:"not null;default:0"`
	SettledAt  *time.Time
	EndedAt    *time.Time `gorm:"index"`
	CreatedAt  time.Time
}
