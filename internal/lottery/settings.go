package lottery

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-bot/internal/models"
)

const (
	SettingDrawTime     = "draw_time"
	SettingRewardAmount = "reward_amount"
	SettingFirstMessage = "first_message"
)

const (
	defaultDrawTime     = "Every day at 8:00 PM"
	defaultRewardCents  = "5000"
	DefaultFirstMessage = "🎟️ Welcome to Free Lottery Bot!\n\n" +
		"• You get a free ticket as a welcome reward (one per device).\n" +
		"• Invite friends – after they verify & receive their welcome ticket, you get an extra ticket.\n" +
		"• Next draw: {draw_time}.\n" +
		"• Total prize this round: ₹{reward}.\n\n" +
		"Join our channel: {channel}\n" +
		"Then tap Verify below to complete device check & claim your ticket."
)

// Settings is the mutable runtime configuration, loaded explicitly from the
// store rather than kept in a process global.
type Settings struct {
	DrawTime          string
	RewardAmountCents int64
	FirstMessage      string
}

var settingDefaults = map[string]string{
	SettingDrawTime:     defaultDrawTime,
	SettingRewardAmount: defaultRewardCents,
	SettingFirstMessage: DefaultFirstMessage,
}

// EnsureDefaultSettings seeds missing keys at startup. Existing values win.
func (s *Service) EnsureDefaultSettings(ctx context.Context) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		for key, value := range settingDefaults {
			row := models.Setting{Key: key, Value: value}
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSettings reads the whole settings table in one pass.
func (s *Service) GetSettings(ctx context.Context) (*Settings, error) {
	values := make(map[string]string)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var rows []models.Setting
		if err := tx.Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			values[row.Key] = row.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		DrawTime:     defaultDrawTime,
		FirstMessage: DefaultFirstMessage,
	}
	if v, ok := values[SettingDrawTime]; ok {
		settings.DrawTime = v
	}
	if v, ok := values[SettingFirstMessage]; ok {
		settings.FirstMessage = v
	}
	reward := defaultRewardCents
	if v, ok := values[SettingRewardAmount]; ok {
		reward = v
	}
	cents, err := strconv.ParseInt(reward, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt %s setting %q: %w", SettingRewardAmount, reward, err)
	}
	settings.RewardAmountCents = cents
	return settings, nil
}

// ChangeSetting upserts one key. The new value is visible to the next
// operation that loads settings.
func (s *Service) ChangeSetting(ctx context.Context, callerID int64, key, value string) error {
	if !s.admins[callerID] {
		return ErrNotAdmin
	}
	if _, known := settingDefaults[key]; !known {
		return ErrNotFound
	}
	if key == SettingRewardAmount {
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("reward amount must be integer cents: %w", err)
		}
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		row := models.Setting{Key: key, Value: value}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&row).Error
	})
}
