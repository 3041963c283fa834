package lottery

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-bot/internal/models"
)

// RequestWithdrawal opens a pending payout for the user's full balance. The
// amount and payment id are snapshotted now; nothing is debited until the
// request is confirmed.
func (s *Service) RequestWithdrawal(ctx context.Context, telegramID int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := lockUserByTelegramID(tx, telegramID, &user); err != nil {
			return err
		}
		if user.PaymentID == nil {
			return ErrNoPaymentID
		}
		if user.BalanceCents < MinWithdrawalCents {
			return ErrBelowMinimum
		}
		withdrawal = models.Withdrawal{
			UserID:      user.ID,
			AmountCents: user.BalanceCents,
			PaymentID:   *user.PaymentID,
			Status:      models.WithdrawalPending,
		}
		return tx.Create(&withdrawal).Error
	})
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// ConfirmWithdrawal re-validates the balance under the user row lock and
// debits it. The balance may have moved since the request was created, so the
// snapshot is never trusted on its own.
func (s *Service) ConfirmWithdrawal(ctx context.Context, withdrawalID uint) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		withdrawal, err := lockPendingWithdrawal(tx, withdrawalID)
		if err != nil {
			return err
		}

		var user models.User
		if err := lockUserByID(tx, withdrawal.UserID, &user); err != nil {
			return err
		}
		if user.BalanceCents < withdrawal.AmountCents {
			return ErrInsufficientBalance
		}

		if err := tx.Model(&user).Update("balance_cents", user.BalanceCents-withdrawal.AmountCents).Error; err != nil {
			return err
		}
		return tx.Model(withdrawal).Update("status", models.WithdrawalPaid).Error
	})
}

// CancelWithdrawal rejects a pending request. No balance effect.
func (s *Service) CancelWithdrawal(ctx context.Context, withdrawalID uint) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		withdrawal, err := lockPendingWithdrawal(tx, withdrawalID)
		if err != nil {
			return err
		}
		return tx.Model(withdrawal).Update("status", models.WithdrawalRejected).Error
	})
}

// StalePendingWithdrawals lists pending requests created before the cutoff,
// for the background reaper.
func (s *Service) StalePendingWithdrawals(ctx context.Context, cutoff time.Time) ([]models.Withdrawal, error) {
	var stale []models.Withdrawal
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Preload("User").
			Where("status = ? AND created_at < ?", models.WithdrawalPending, cutoff).
			Find(&stale).Error
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

func lockPendingWithdrawal(tx *gorm.DB, id uint) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&withdrawal, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalPending {
		return nil, ErrWithdrawalClosed
	}
	return &withdrawal, nil
}
