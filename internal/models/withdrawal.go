package models

import (
	"time"
)

const (
	WithdrawalPending  = "pending"
	WithdrawalRejected = "rejected"
	WithdrawalPaid     = "paid"
)

type Withdrawal struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;index"`
	User        User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	AmountCents int64  `gorm:"not null"`
	PaymentID   string `gorm:"size:255;not null"`
	Status      string `gorm:"size:16;not null;default:'pending'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
