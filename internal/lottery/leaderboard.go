package lottery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lottery-bot/internal/models"
)

const leaderboardCacheTTL = time.Minute

// LeaderboardRow is one entry of either leaderboard; Score is won cents or
// valid referral count depending on the board.
type LeaderboardRow struct {
	TelegramID int64 `json:"telegram_id"`
	Score      int64 `json:"score"`
}

// LeaderboardByEarnings ranks users by lifetime winnings. Results are cached
// in redis for a minute; the boards are read far more often than they change.
func (s *Service) LeaderboardByEarnings(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	key := fmt.Sprintf("leaderboard:earnings:%d", limit)
	if rows, ok := s.cachedLeaderboard(ctx, key); ok {
		return rows, nil
	}

	var rows []LeaderboardRow
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.User{}).
			Select("telegram_id, total_won_cents AS score").
			Where("total_won_cents > 0").
			Order("total_won_cents DESC").
			Limit(limit).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	s.cacheLeaderboard(ctx, key, rows)
	return rows, nil
}

// LeaderboardByReferrals ranks referrers by valid referral count.
func (s *Service) LeaderboardByReferrals(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	key := fmt.Sprintf("leaderboard:referrals:%d", limit)
	if rows, ok := s.cachedLeaderboard(ctx, key); ok {
		return rows, nil
	}

	var rows []LeaderboardRow
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.Referral{}).
			Select("users.telegram_id, COUNT(*) AS score").
			Joins("JOIN users ON users.id = referrals.referrer_id").
			Where("referrals.valid").
			Group("users.telegram_id").
			Order("score DESC").
			Limit(limit).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	s.cacheLeaderboard(ctx, key, rows)
	return rows, nil
}

func (s *Service) cachedLeaderboard(ctx context.Context, key string) ([]LeaderboardRow, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var rows []LeaderboardRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (s *Service) cacheLeaderboard(ctx context.Context, key string, rows []LeaderboardRow) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, leaderboardCacheTTL).Err(); err != nil {
		s.log.Warnw("failed to cache leaderboard", "key", key, "error", err)
	}
}
