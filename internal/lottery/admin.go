package lottery

import (
	"context"

	"gorm.io/gorm"

	"lottery-bot/internal/models"
)

// Stats is the admin dashboard summary.
type Stats struct {
	Users              int64
	TicketsInRound     int64
	ValidReferrals     int64
	PendingWithdrawals int64
	CurrentRound       int64
}

func (s *Service) Stats(ctx context.Context, callerID int64) (*Stats, error) {
	if !s.admins[callerID] {
		return nil, ErrNotAdmin
	}
	var stats Stats
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var round models.Round
		if err := lockCurrentRound(tx, &round); err != nil {
			return err
		}
		stats.CurrentRound = round.Number
		if err := tx.Model(&models.User{}).Count(&stats.Users).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Ticket{}).Where("round = ?", round.Number).Count(&stats.TicketsInRound).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Referral{}).Where("valid").Count(&stats.ValidReferrals).Error; err != nil {
			return err
		}
		return tx.Model(&models.Withdrawal{}).
			Where("status = ?", models.WithdrawalPending).
			Count(&stats.PendingWithdrawals).Error
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// AdjustBalance applies a signed manual correction. Debits larger than the
// current balance are refused, the balance never goes negative.
func (s *Service) AdjustBalance(ctx context.Context, callerID, telegramID int64, deltaCents int64) (int64, error) {
	if !s.admins[callerID] {
		return 0, ErrNotAdmin
	}
	var newBalance int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := lockUserByTelegramID(tx, telegramID, &user); err != nil {
			return err
		}
		newBalance = user.BalanceCents + deltaCents
		if newBalance < 0 {
			return ErrInsufficientBalance
		}
		return tx.Model(&user).Update("balance_cents", newBalance).Error
	})
	if err != nil {
		return 0, err
	}
	s.log.Infow("balance adjusted", "telegram_id", telegramID, "delta_cents", deltaCents)
	return newBalance, nil
}

// GrantTicket issues one extra ticket in the current round, admin override.
func (s *Service) GrantTicket(ctx context.Context, callerID, telegramID int64) (string, error) {
	if !s.admins[callerID] {
		return "", ErrNotAdmin
	}
	var code string
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		// Round lock before the user row, same order as settlement.
		var round models.Round
		if err := lockCurrentRound(tx, &round); err != nil {
			return err
		}
		var user models.User
		if err := lockUserByTelegramID(tx, telegramID, &user); err != nil {
			return err
		}
		issued, err := s.issueTicket(tx, user.ID, round.Number)
		if err != nil {
			return err
		}
		code = issued
		return nil
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// AllTelegramIDs returns every registered account id, for broadcast fan-out.
func (s *Service) AllTelegramIDs(ctx context.Context, callerID int64) ([]int64, error) {
	if !s.admins[callerID] {
		return nil, ErrNotAdmin
	}
	var ids []int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.User{}).Order("id").Pluck("telegram_id", &ids).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
