package models

import (
	"time"
)

type Ticket struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	User      User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Code      string `gorm:"size:6;uniqueIndex;not null"`
	Round     int64  `gorm:"not null;index"`
	CreatedAt time.Time
}

// TicketCode records every code ever generated. Rows are never deleted, so a
// code stays burned even if its ticket is cleared by an admin.
type TicketCode struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:6;uniqueIndex;not null"`
	CreatedAt time.Time
}
