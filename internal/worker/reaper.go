package worker

import (
	"context"
	"fmt"
	"time"

	"lottery-bot/internal/lottery"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	checkInterval = 1 * time.Hour
	staleAfter    = 48 * time.Hour
)

// Reaper rejects withdrawal requests that sat pending too long and tells the
// user once, deduplicated through redis.
type Reaper struct {
	Service *lottery.Service
	Redis   *redis.Client
	Bot     *telego.Bot
	Log     *zap.SugaredLogger
}

func NewReaper(service *lottery.Service, rdb *redis.Client, bot *telego.Bot, log *zap.SugaredLogger) *Reaper {
	return &Reaper{
		Service: service,
		Redis:   rdb,
		Bot:     bot,
		Log:     log,
	}
}

func (r *Reaper) Start() {
	ticker := time.NewTicker(checkInterval)
	r.Log.Info("Background withdrawal reaper started")

	// Run once at start
	r.reapStaleWithdrawals()

	for range ticker.C {
		r.reapStaleWithdrawals()
	}
}

func (r *Reaper) reapStaleWithdrawals() {
	ctx := context.Background()
	cutoff := time.Now().Add(-staleAfter)

	stale, err := r.Service.StalePendingWithdrawals(ctx, cutoff)
	if err != nil {
		r.Log.Errorw("failed to list stale withdrawals", "error", err)
		return
	}

	for _, withdrawal := range stale {
		if err := r.Service.CancelWithdrawal(ctx, withdrawal.ID); err != nil {
			r.Log.Errorw("failed to auto-reject withdrawal", "withdrawal_id", withdrawal.ID, "error", err)
			continue
		}
		r.Log.Infow("auto-rejected stale withdrawal", "withdrawal_id", withdrawal.ID, "user_id", withdrawal.UserID)

		key := fmt.Sprintf("notified_stale_wd_%d", withdrawal.ID)
		exists, _ := r.Redis.Exists(ctx, key).Result()
		if exists != 0 {
			continue
		}
		_, err := r.Bot.SendMessage(ctx, tu.Message(
			tu.ID(withdrawal.User.TelegramID),
			"⌛ Your withdrawal request expired after 48 hours and was cancelled. Your balance is untouched – request again any time.",
		))
		if err == nil {
			r.Redis.Set(ctx, key, "true", 7*24*time.Hour)
		} else {
			r.Log.Warnw("failed to notify user about expired withdrawal", "user_id", withdrawal.UserID, "error", err)
		}
	}
}
