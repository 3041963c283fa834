package eligibility

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
)

// ChannelChecker verifies channel membership through the Telegram API.
// Any transport failure is reported as an error; the caller treats it as
// "not a member".
type ChannelChecker struct {
	bot     *telego.Bot
	channel string
}

func NewChannelChecker(bot *telego.Bot, channel string) *ChannelChecker {
	return &ChannelChecker{bot: bot, channel: channel}
}

func (c *ChannelChecker) IsMember(ctx context.Context, telegramID int64) (bool, error) {
	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{Username: c.channel},
		UserID: telegramID,
	})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}

	switch member.MemberStatus() {
	case telego.MemberStatusMember, telego.MemberStatusAdministrator, telego.MemberStatusCreator:
		return true, nil
	}
	return false, nil
}
