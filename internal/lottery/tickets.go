package lottery

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"lottery-bot/internal/models"
)

// maxCodeAttempts bounds the collision retry loop. With a 36^6 keyspace the
// expected number of retries is ~0; hitting the cap means the code source is
// broken.
const maxCodeAttempts = 100

// issueTicket reserves a fresh code and binds it to the owner in the given
// round. Must only be called inside a transaction that already holds the
// round row lock and has established the owner is entitled to a ticket.
func (s *Service) issueTicket(tx *gorm.DB, userID uint, round int64) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.codes.Code()

		var taken int64
		if err := tx.Model(&models.TicketCode{}).Where("code = ?", code).Count(&taken).Error; err != nil {
			return "", err
		}
		if taken > 0 {
			continue
		}

		if err := tx.Create(&models.TicketCode{Code: code}).Error; err != nil {
			return "", err
		}
		ticket := models.Ticket{UserID: userID, Code: code, Round: round}
		if err := tx.Create(&ticket).Error; err != nil {
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("no unique ticket code after %d attempts", maxCodeAttempts)
}

// ListTickets returns the user's tickets, most recent first.
func (s *Service) ListTickets(ctx context.Context, telegramID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := userByTelegramID(tx, telegramID, &user); err != nil {
			return err
		}
		return tx.Where("user_id = ?", user.ID).Order("id DESC").Find(&tickets).Error
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// CountTickets reports how many tickets the given round holds.
func (s *Service) CountTickets(ctx context.Context, round int64) (int64, error) {
	var count int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.Ticket{}).Where("round = ?", round).Count(&count).Error
	})
	return count, err
}
