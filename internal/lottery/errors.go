package lottery

import "errors"

var (
	ErrNotFound            = errors.New("record not found")
	ErrAlreadyClaimed      = errors.New("welcome ticket already claimed")
	ErrDeviceRejected      = errors.New("device check rejected")
	ErrNotChannelMember    = errors.New("user is not a channel member")
	ErrInvalidPaymentID    = errors.New("invalid payment id format")
	ErrDuplicatePaymentID  = errors.New("payment id already linked to another account")
	ErrNoPaymentID         = errors.New("no payment id linked")
	ErrBelowMinimum        = errors.New("balance below withdrawal minimum")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientTickets = errors.New("not enough tickets in the round")
	ErrInvalidPrize        = errors.New("prize pool cannot cover the winner count")
	ErrRoundSettled        = errors.New("round already settled")
	ErrWithdrawalClosed    = errors.New("withdrawal is not pending")
	ErrNotAdmin            = errors.New("operation restricted to admins")
	ErrStoreUnavailable    = errors.New("store temporarily unavailable")
)
