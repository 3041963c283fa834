package lottery

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-bot/internal/models"
)

// validateReferral flips the referee's referral row to valid and issues one
// bonus ticket to the referrer. Runs inside the welcome-award transaction;
// the welcome-claim flag is what makes the credit fire at most once per
// referee, since this is the only call site.
func (s *Service) validateReferral(tx *gorm.DB, referee *models.User, round int64) (bool, string, error) {
	var referral models.Referral
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referee_id = ?", referee.ID).First(&referral).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if referral.Valid {
		return false, "", nil
	}

	var referrer models.User
	if err := lockUserByID(tx, referral.ReferrerID, &referrer); err != nil {
		return false, "", err
	}
	// Eligibility was computed before the transaction; the flag may have
	// flipped since, so it is re-checked under the lock.
	if referrer.DeviceRejected {
		return false, "", nil
	}

	if err := tx.Model(&referral).Update("valid", true).Error; err != nil {
		return false, "", err
	}
	code, err := s.issueTicket(tx, referrer.ID, round)
	if err != nil {
		return false, "", err
	}
	return true, code, nil
}
