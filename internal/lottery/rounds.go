package lottery

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-bot/internal/models"
)

// Winner is one settled ticket.
type Winner struct {
	TelegramID  int64
	Code        string
	AmountCents int64
}

// splitPrize divides the pool evenly, remainder to the first-drawn ticket.
// The shares always sum to exactly total.
func splitPrize(total int64, n int) []int64 {
	shares := make([]int64, n)
	share := total / int64(n)
	for i := range shares {
		shares[i] = share
	}
	shares[0] += total % int64(n)
	return shares
}

// lockCurrentRound takes the open round row for update, creating round 1 on
// demand. Every ticket issuance goes through this lock, so settlement and
// round end, which hold it exclusively, always see a stable ticket set.
// Transactions that also lock user rows must take this lock first, so all
// writers acquire round then users and cannot deadlock against each other.
func lockCurrentRound(tx *gorm.DB, round *models.Round) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("ended_at IS NULL").Order("number DESC").First(round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		*round = models.Round{Number: 1}
		return tx.Create(round).Error
	}
	return err
}

// CurrentRound reports the active round number.
func (s *Service) CurrentRound(ctx context.Context) (int64, error) {
	var number int64 = 1
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var round models.Round
		err := tx.Where("ended_at IS NULL").Order("number DESC").First(&round).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		number = round.Number
		return nil
	})
	return number, err
}

// SelectWinners draws n distinct tickets uniformly without replacement from
// the current round and splits prizeTotalCents evenly across them, remainder
// to the first-drawn ticket. Tickets are the sampling unit, so holding k
// tickets means k times the odds. All credits and the settlement stamp commit
// as one transaction.
func (s *Service) SelectWinners(ctx context.Context, callerID int64, n int, prizeTotalCents int64) ([]Winner, error) {
	if !s.admins[callerID] {
		return nil, ErrNotAdmin
	}
	if n <= 0 {
		return nil, ErrInsufficientTickets
	}
	// Every winner must receive at least one cent.
	if prizeTotalCents < int64(n) {
		return nil, ErrInvalidPrize
	}

	var winners []Winner
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		winners = winners[:0]

		var round models.Round
		if err := lockCurrentRound(tx, &round); err != nil {
			return err
		}
		if round.SettledAt != nil {
			return ErrRoundSettled
		}

		var tickets []models.Ticket
		if err := tx.Where("round = ?", round.Number).Order("id").Find(&tickets).Error; err != nil {
			return err
		}
		if len(tickets) < n {
			return ErrInsufficientTickets
		}

		shares := splitPrize(prizeTotalCents, n)

		order := s.perm(len(tickets))
		for i := 0; i < n; i++ {
			ticket := tickets[order[i]]
			amount := shares[i]

			var owner models.User
			if err := lockUserByID(tx, ticket.UserID, &owner); err != nil {
				return err
			}
			err := tx.Model(&owner).Updates(map[string]any{
				"balance_cents":   owner.BalanceCents + amount,
				"total_won_cents": owner.TotalWonCents + amount,
				"last_win_round":  round.Number,
			}).Error
			if err != nil {
				return err
			}

			winners = append(winners, Winner{
				TelegramID:  owner.TelegramID,
				Code:        ticket.Code,
				AmountCents: amount,
			})
		}

		now := time.Now().UTC()
		return tx.Model(&round).Updates(map[string]any{
			"settled_at":  now,
			"prize_cents": prizeTotalCents,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("round settled", "winners", len(winners), "prize_cents", prizeTotalCents)
	return winners, nil
}

// EndRound closes the current round and opens the next one. Nothing is
// deleted: past tickets and referrals stay archived under their old round
// number and simply fall out of scope.
func (s *Service) EndRound(ctx context.Context, callerID int64) (int64, error) {
	if !s.admins[callerID] {
		return 0, ErrNotAdmin
	}
	var next int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var round models.Round
		if err := lockCurrentRound(tx, &round); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&round).Update("ended_at", now).Error; err != nil {
			return err
		}
		next = round.Number + 1
		return tx.Create(&models.Round{Number: next}).Error
	})
	if err != nil {
		return 0, err
	}
	s.log.Infow("round ended", "next_round", next)
	return next, nil
}

// ClearTickets removes every ticket in the current round. The codes stay
// reserved in ticket_codes, so a cleared code is never issued again.
func (s *Service) ClearTickets(ctx context.Context, callerID int64) (int64, error) {
	if !s.admins[callerID] {
		return 0, ErrNotAdmin
	}
	var removed int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var round models.Round
		if err := lockCurrentRound(tx, &round); err != nil {
			return err
		}
		result := tx.Where("round = ?", round.Number).Delete(&models.Ticket{})
		removed = result.RowsAffected
		return result.Error
	})
	return removed, err
}
