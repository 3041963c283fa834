package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lottery-bot/internal/lottery"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Multi-step admin parameter collection lives entirely here: the state map
// accumulates input message by message and the core service is only called
// once every parameter is present.
const (
	stateWaitingPaymentID = "WAITING_PAYMENT_ID"

	stateAdminBroadcast  = "admin:broadcast"
	stateAdminDMUser     = "admin:dm_user"
	stateAdminDMText     = "admin:dm_text"
	stateAdminAddBalUser = "admin:addbal_user"
	stateAdminAddBalAmt  = "admin:addbal_amount"
	stateAdminRmBalUser  = "admin:rmbal_user"
	stateAdminRmBalAmt   = "admin:rmbal_amount"
	stateAdminTicketUser = "admin:addticket_user"
	stateAdminPickCount  = "admin:pick_count"
	stateAdminPickPrize  = "admin:pick_prize"
	stateAdminDrawTime   = "admin:drawtime"
	stateAdminPrize      = "admin:prize"
	stateAdminFirstMsg   = "admin:firstmsg"
)

func adminMenu() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📊 Stats").WithCallbackData("admin:stats"),
			tu.InlineKeyboardButton("📣 Broadcast").WithCallbackData("admin:broadcast"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✉️ DM User").WithCallbackData("admin:dm"),
			tu.InlineKeyboardButton("💰 Add Balance").WithCallbackData("admin:addbal"),
			tu.InlineKeyboardButton("💳 Remove Balance").WithCallbackData("admin:rmbal"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("➕ Add Ticket").WithCallbackData("admin:addticket"),
			tu.InlineKeyboardButton("🗑️ Remove All Tickets").WithCallbackData("admin:cleartickets"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🔚 End Round").WithCallbackData("admin:endround"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🏅 Select Winner(s)").WithCallbackData("admin:pick"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("⏰ Change Draw Time").WithCallbackData("admin:drawtime"),
			tu.InlineKeyboardButton("🏦 Change Prize").WithCallbackData("admin:prize"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📝 Change First Message").WithCallbackData("admin:firstmsg"),
		),
	)
}

func (b *Bot) registerAdminHandlers(handler *th.BotHandler) {
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		if !b.Cfg.IsAdmin(telegramID) {
			return nil
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "Admin panel").
			WithReplyMarkup(adminMenu()))
		return nil
	}, th.CommandEqual("admin"))

	handler.Handle(b.handleAdminCallback, th.CallbackDataPrefix("admin:"))
}

func (b *Bot) handleAdminCallback(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	telegramID := callback.From.ID
	defer func() {
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	}()

	if !b.Cfg.IsAdmin(telegramID) {
		return nil
	}

	action := strings.TrimPrefix(callback.Data, "admin:")
	prompts := map[string]struct {
		state  string
		prompt string
	}{
		"broadcast": {stateAdminBroadcast, "Send the broadcast text."},
		"dm":        {stateAdminDMUser, "Send the target user id."},
		"addbal":    {stateAdminAddBalUser, "Send the user id to credit."},
		"rmbal":     {stateAdminRmBalUser, "Send the user id to debit."},
		"addticket": {stateAdminTicketUser, "Send the user id to grant a ticket."},
		"pick":      {stateAdminPickCount, "How many winners?"},
		"drawtime":  {stateAdminDrawTime, "Send the new draw time description."},
		"prize":     {stateAdminPrize, "Send the new prize amount in cents."},
		"firstmsg":  {stateAdminFirstMsg, "Send the new welcome message template."},
	}

	if p, ok := prompts[action]; ok {
		b.setState(telegramID, p.state)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), p.prompt))
		return nil
	}

	switch action {
	case "stats":
		stats, err := b.Service.Stats(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("Round %d\nUsers: %d\nTickets in round: %d\nValid referrals: %d\nPending withdrawals: %d",
				stats.CurrentRound, stats.Users, stats.TicketsInRound, stats.ValidReferrals, stats.PendingWithdrawals)))
	case "cleartickets":
		removed, err := b.Service.ClearTickets(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("Removed %d tickets from the current round.", removed)))
	case "endround":
		next, err := b.Service.EndRound(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("Round ended. Now collecting tickets for round %d.", next)))
	}
	return nil
}

func (b *Bot) handleAdminInput(ctx *th.Context, telegramID int64, state, text string) error {
	if !b.Cfg.IsAdmin(telegramID) {
		b.clearState(telegramID)
		return nil
	}

	b.StatesMu.Lock()
	pending := b.Pending[telegramID]
	b.StatesMu.Unlock()

	say := func(msg string) {
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), msg))
	}

	switch state {
	case stateAdminBroadcast:
		b.clearState(telegramID)
		ids, err := b.Service.AllTelegramIDs(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		sent := 0
		for _, id := range ids {
			if _, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(id), text)); err == nil {
				sent++
			}
		}
		say(fmt.Sprintf("Broadcast sent to %d/%d users.", sent, len(ids)))

	case stateAdminDMUser:
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			say("Not a user id, try again.")
			return nil
		}
		pending["user_id"] = text
		b.advanceState(telegramID, stateAdminDMText, pending)
		say("Now send the message text.")

	case stateAdminDMText:
		b.clearState(telegramID)
		target, _ := strconv.ParseInt(pending["user_id"], 10, 64)
		if _, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(target), text)); err != nil {
			say("Failed to deliver the message.")
			return nil
		}
		say("Delivered.")

	case stateAdminAddBalUser, stateAdminRmBalUser:
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			say("Not a user id, try again.")
			return nil
		}
		pending["user_id"] = text
		next := stateAdminAddBalAmt
		if state == stateAdminRmBalUser {
			next = stateAdminRmBalAmt
		}
		b.advanceState(telegramID, next, pending)
		say("Amount in cents?")

	case stateAdminAddBalAmt, stateAdminRmBalAmt:
		amount, err := strconv.ParseInt(text, 10, 64)
		if err != nil || amount <= 0 {
			say("Send a positive integer amount in cents.")
			return nil
		}
		b.clearState(telegramID)
		target, _ := strconv.ParseInt(pending["user_id"], 10, 64)
		if state == stateAdminRmBalAmt {
			amount = -amount
		}
		newBalance, err := b.Service.AdjustBalance(ctx.Context(), telegramID, target, amount)
		switch {
		case errors.Is(err, lottery.ErrNotFound):
			say("No such user.")
		case errors.Is(err, lottery.ErrInsufficientBalance):
			say("User balance is too low for that debit.")
		case err != nil:
			return b.replyError(ctx, telegramID, err)
		default:
			say(fmt.Sprintf("Done. New balance: %s", fmtMoney(newBalance)))
		}

	case stateAdminTicketUser:
		target, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			say("Not a user id, try again.")
			return nil
		}
		b.clearState(telegramID)
		code, err := b.Service.GrantTicket(ctx.Context(), telegramID, target)
		switch {
		case errors.Is(err, lottery.ErrNotFound):
			say("No such user.")
		case err != nil:
			return b.replyError(ctx, telegramID, err)
		default:
			say(fmt.Sprintf("Ticket %s granted to %d.", code, target))
		}

	case stateAdminPickCount:
		count, err := strconv.Atoi(text)
		if err != nil || count <= 0 {
			say("Send a positive winner count.")
			return nil
		}
		pending["count"] = text
		b.advanceState(telegramID, stateAdminPickPrize, pending)
		say("Total prize in cents?")

	case stateAdminPickPrize:
		prize, err := strconv.ParseInt(text, 10, 64)
		if err != nil || prize <= 0 {
			say("Send a positive prize amount in cents.")
			return nil
		}
		b.clearState(telegramID)
		count, _ := strconv.Atoi(pending["count"])

		winners, err := b.Service.SelectWinners(ctx.Context(), telegramID, count, prize)
		switch {
		case errors.Is(err, lottery.ErrInsufficientTickets):
			say("Not enough tickets in the round for that many winners.")
			return nil
		case errors.Is(err, lottery.ErrRoundSettled):
			say("This round is already settled. End the round first.")
			return nil
		case errors.Is(err, lottery.ErrInvalidPrize):
			say("Prize is too small – every winner needs at least one cent.")
			return nil
		case err != nil:
			return b.replyError(ctx, telegramID, err)
		}

		var sb strings.Builder
		sb.WriteString("🏅 Winners:\n")
		for _, w := range winners {
			fmt.Fprintf(&sb, "User %d – ticket %s – %s\n", w.TelegramID, w.Code, fmtMoney(w.AmountCents))
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(w.TelegramID),
				fmt.Sprintf("🎉 Your ticket %s won %s! The amount was added to your balance.", w.Code, fmtMoney(w.AmountCents))))
		}
		say(sb.String())

	case stateAdminDrawTime:
		b.clearState(telegramID)
		if err := b.Service.ChangeSetting(ctx.Context(), telegramID, lottery.SettingDrawTime, text); err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		say("Draw time updated.")

	case stateAdminPrize:
		b.clearState(telegramID)
		if err := b.Service.ChangeSetting(ctx.Context(), telegramID, lottery.SettingRewardAmount, text); err != nil {
			say("Prize must be integer cents.")
			return nil
		}
		say("Prize updated.")

	case stateAdminFirstMsg:
		b.clearState(telegramID)
		if err := b.Service.ChangeSetting(ctx.Context(), telegramID, lottery.SettingFirstMessage, text); err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		say("Welcome message updated.")
	}
	return nil
}

func (b *Bot) advanceState(telegramID int64, state string, pending map[string]string) {
	b.StatesMu.Lock()
	b.UserStates[telegramID] = state
	b.Pending[telegramID] = pending
	b.StatesMu.Unlock()
}
