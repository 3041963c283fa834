package lottery

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"lottery-bot/internal/models"
)

// AwardResult reports a granted welcome ticket and, when the referrer earned
// a bonus ticket in the same transaction, who to notify.
type AwardResult struct {
	Code               string
	Round              int64
	ReferrerTelegramID *int64
	ReferrerCode       string
}

// AwardWelcomeTicket grants the one-time welcome ticket. The claim flag, the
// ticket insert and the referral credit all commit in a single transaction
// under the user row lock, so concurrent calls for the same user produce
// exactly one award.
//
// An affirmative duplicate-device answer marks the account device_rejected;
// that state is terminal and distinct from "not yet attempted", so a rejected
// user cannot farm retries. An oracle error only denies the attempt.
func (s *Service) AwardWelcomeTicket(ctx context.Context, telegramID int64) (*AwardResult, error) {
	// Oracle calls stay outside the transaction to keep the lock window
	// short. The flags are re-checked under the lock before any write.
	var user models.User
	if err := s.inTx(ctx, func(tx *gorm.DB) error {
		return userByTelegramID(tx, telegramID, &user)
	}); err != nil {
		return nil, err
	}
	if user.WelcomeClaimed {
		return nil, ErrAlreadyClaimed
	}
	if user.DeviceRejected {
		return nil, ErrDeviceRejected
	}

	if !s.checkMember(ctx, telegramID) {
		return nil, ErrNotChannelMember
	}

	same, err := s.checkSameDevice(ctx, telegramID)
	if err != nil {
		// An unreachable oracle denies this attempt; it never counts as
		// a duplicate, so the account stays eligible for a retry.
		return nil, ErrStoreUnavailable
	}
	if same {
		if err := s.markDeviceRejected(ctx, telegramID); err != nil {
			return nil, err
		}
		return nil, ErrDeviceRejected
	}

	// The referrer is fixed at registration, so it is safe to resolve and
	// device-check them before taking locks.
	referrerEligible := false
	var referrer models.User
	if user.ReferrerID != nil {
		if err := s.inTx(ctx, func(tx *gorm.DB) error {
			err := tx.First(&referrer, *user.ReferrerID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}); err == nil && !referrer.DeviceRejected {
			refSame, refErr := s.checkSameDevice(ctx, referrer.TelegramID)
			referrerEligible = refErr == nil && !refSame
		}
	}

	var result AwardResult
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		// Round lock before user rows, same order as settlement.
		var round models.Round
		if err := lockCurrentRound(tx, &round); err != nil {
			return err
		}

		var locked models.User
		if err := lockUserByTelegramID(tx, telegramID, &locked); err != nil {
			return err
		}
		if locked.WelcomeClaimed {
			return ErrAlreadyClaimed
		}
		if locked.DeviceRejected {
			return ErrDeviceRejected
		}

		code, err := s.issueTicket(tx, locked.ID, round.Number)
		if err != nil {
			return err
		}
		if err := tx.Model(&locked).Update("welcome_claimed", true).Error; err != nil {
			return err
		}
		result = AwardResult{Code: code, Round: round.Number}

		if locked.ReferrerID != nil && referrerEligible {
			credited, bonusCode, err := s.validateReferral(tx, &locked, round.Number)
			if err != nil {
				return err
			}
			if credited {
				result.ReferrerTelegramID = &referrer.TelegramID
				result.ReferrerCode = bonusCode
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("welcome ticket awarded",
		"telegram_id", telegramID, "code", result.Code, "round", result.Round,
		"referrer_credited", result.ReferrerTelegramID != nil)
	return &result, nil
}

func (s *Service) markDeviceRejected(ctx context.Context, telegramID int64) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		var locked models.User
		if err := lockUserByTelegramID(tx, telegramID, &locked); err != nil {
			return err
		}
		if locked.WelcomeClaimed {
			return ErrAlreadyClaimed
		}
		return tx.Model(&locked).Updates(map[string]any{
			"device_rejected": true,
			"updated_at":      time.Now().UTC(),
		}).Error
	})
}
