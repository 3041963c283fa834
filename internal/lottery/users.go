package lottery

import (
	"context"
	"errors"
	"regexp"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-bot/internal/models"
)

var paymentIDPattern = regexp.MustCompile(`^[\w._-]+@[\w.-]+$`)

// Profile is the read-only aggregate shown to the user.
type Profile struct {
	TelegramID     int64
	PaymentID      *string
	BalanceCents   int64
	TotalWonCents  int64
	LastWinRound   *int64
	TicketCount    int64
	ValidReferrals int64
}

// RegisterUser creates the account on first contact. Registration is
// idempotent: an existing user is left untouched, including their referrer,
// no matter what deep link they arrive with later.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64, username string, referrerTelegramID *int64) (bool, error) {
	created := false
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("telegram_id = ?", telegramID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user := models.User{TelegramID: telegramID, Username: username}

		if referrerTelegramID != nil && *referrerTelegramID != telegramID {
			var referrer models.User
			err := tx.Where("telegram_id = ?", *referrerTelegramID).First(&referrer).Error
			if err == nil {
				user.ReferrerID = &referrer.ID
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if user.ReferrerID != nil {
			referral := models.Referral{ReferrerID: *user.ReferrerID, RefereeID: user.ID}
			if err := tx.Create(&referral).Error; err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Infow("registered user", "telegram_id", telegramID, "referred", referrerTelegramID != nil)
	}
	return created, nil
}

// LinkPaymentID attaches a payout identifier to the account. Uniqueness is
// checked against every identifier ever linked, not just current ones: an id
// removed from one account can never migrate to another.
func (s *Service) LinkPaymentID(ctx context.Context, telegramID int64, paymentID string) error {
	if !paymentIDPattern.MatchString(paymentID) {
		return ErrInvalidPaymentID
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := lockUserByTelegramID(tx, telegramID, &user); err != nil {
			return err
		}

		var link models.PaymentLink
		err := tx.Where("payment_id = ?", paymentID).First(&link).Error
		switch {
		case err == nil:
			if link.UserID != user.ID {
				return ErrDuplicatePaymentID
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			link = models.PaymentLink{PaymentID: paymentID, UserID: user.ID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Model(&user).Update("payment_id", paymentID).Error
	})
}

// GetProfile is a pure read, no side effects.
func (s *Service) GetProfile(ctx context.Context, telegramID int64) (*Profile, error) {
	var profile Profile
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := userByTelegramID(tx, telegramID, &user); err != nil {
			return err
		}
		var ticketCount int64
		if err := tx.Model(&models.Ticket{}).Where("user_id = ?", user.ID).Count(&ticketCount).Error; err != nil {
			return err
		}
		var validReferrals int64
		if err := tx.Model(&models.Referral{}).Where("referrer_id = ? AND valid", user.ID).Count(&validReferrals).Error; err != nil {
			return err
		}
		profile = Profile{
			TelegramID:     user.TelegramID,
			PaymentID:      user.PaymentID,
			BalanceCents:   user.BalanceCents,
			TotalWonCents:  user.TotalWonCents,
			LastWinRound:   user.LastWinRound,
			TicketCount:    ticketCount,
			ValidReferrals: validReferrals,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func userByTelegramID(tx *gorm.DB, telegramID int64, user *models.User) error {
	err := tx.Where("telegram_id = ?", telegramID).First(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func lockUserByTelegramID(tx *gorm.DB, telegramID int64, user *models.User) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("telegram_id = ?", telegramID).First(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func lockUserByID(tx *gorm.DB, id uint, user *models.User) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
