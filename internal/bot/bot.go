package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"lottery-bot/internal/config"
	"lottery-bot/internal/lottery"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

const (
	btnMyTickets   = "🎟️ My Tickets"
	btnRefer       = "👥 Refer"
	btnProfile     = "👤 Profile"
	btnJoinChannel = "📢 Join Channel"
	btnEarnings    = "🏆 Earnings Leaderboard"
	btnReferLeader = "👑 Refer Leader"
	btnChangeUPI   = "💳 Change UPI"
	btnWithdraw    = "💸 Withdraw"
	btnHelp        = "❓ How to get extra tickets"
)

const leaderboardLimit = 10

type Bot struct {
	Instance   *telego.Bot
	Service    *lottery.Service
	Cfg        *config.Config
	Log        *zap.SugaredLogger
	UserStates map[int64]string
	Pending    map[int64]map[string]string
	StatesMu   sync.RWMutex
}

func NewBot(token string, service *lottery.Service, cfg *config.Config, log *zap.SugaredLogger) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		Instance:   tgBot,
		Service:    service,
		Cfg:        cfg,
		Log:        log,
		UserStates: make(map[int64]string),
		Pending:    make(map[int64]map[string]string),
	}, nil
}

func mainMenu() *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton(btnMyTickets), tu.KeyboardButton(btnRefer)),
		tu.KeyboardRow(tu.KeyboardButton(btnProfile), tu.KeyboardButton(btnJoinChannel)),
		tu.KeyboardRow(tu.KeyboardButton(btnEarnings), tu.KeyboardButton(btnReferLeader)),
		tu.KeyboardRow(tu.KeyboardButton(btnChangeUPI), tu.KeyboardButton(btnWithdraw)),
		tu.KeyboardRow(tu.KeyboardButton(btnHelp)),
	).WithResizeKeyboard()
}

func fmtMoney(cents int64) string {
	return fmt.Sprintf("₹%.2f", float64(cents)/100)
}

func (b *Bot) setState(telegramID int64, state string) {
	b.StatesMu.Lock()
	b.UserStates[telegramID] = state
	b.Pending[telegramID] = make(map[string]string)
	b.StatesMu.Unlock()
}

func (b *Bot) clearState(telegramID int64) {
	b.StatesMu.Lock()
	delete(b.UserStates, telegramID)
	delete(b.Pending, telegramID)
	b.StatesMu.Unlock()
}

func (b *Bot) Start() {
	updates, _ := b.Instance.UpdatesViaLongPolling(context.Background(), nil)

	handler, _ := th.NewBotHandler(b.Instance, updates)

	// /start command, optionally carrying a ref_<id> deep link
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		telegramID := message.From.ID

		var referrer *int64
		if parts := strings.Split(message.Text, " "); len(parts) > 1 && strings.HasPrefix(parts[1], "ref_") {
			if id, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "ref_"), 10, 64); err == nil {
				referrer = &id
			}
		}

		if _, err := b.Service.RegisterUser(ctx.Context(), telegramID, message.From.Username, referrer); err != nil {
			b.Log.Errorw("failed to register user", "telegram_id", telegramID, "error", err)
		}

		settings, err := b.Service.GetSettings(ctx.Context())
		if err != nil {
			b.Log.Errorw("failed to load settings", "error", err)
			settings = &lottery.Settings{FirstMessage: lottery.DefaultFirstMessage}
		}

		text := strings.NewReplacer(
			"{draw_time}", settings.DrawTime,
			"{reward}", fmt.Sprintf("%.2f", float64(settings.RewardAmountCents)/100),
			"{channel}", b.Cfg.RequiredChannel,
		).Replace(settings.FirstMessage)

		keyboard := tu.InlineKeyboard(
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("✅ Verify & Claim").WithCallbackData("verify"),
			),
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("📢 Join Channel").
					WithURL("https://t.me/" + strings.TrimPrefix(b.Cfg.RequiredChannel, "@")),
			),
		)

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID), text,
		).WithReplyMarkup(keyboard))
		return nil
	}, th.CommandEqual("start"))

	handler.Handle(b.handleVerify, th.CallbackDataEqual("verify"))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		tickets, err := b.Service.ListTickets(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		settings, err := b.Service.GetSettings(ctx.Context())
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		if len(tickets) == 0 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
				fmt.Sprintf("You have no tickets yet. Next draw: %s. Invite friends to earn tickets!", settings.DrawTime)))
			return nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Your Tickets (total: %d)\nNext draw: %s\n\n", len(tickets), settings.DrawTime)
		for _, t := range tickets {
			fmt.Fprintf(&sb, "%s (round %d)\n", t.Code, t.Round)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), sb.String()))
		return nil
	}, th.TextEqual(btnMyTickets))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		profile, err := b.Service.GetProfile(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}

		botUsername := ""
		if info, err := b.Instance.GetMe(ctx.Context()); err == nil {
			botUsername = info.Username
		}
		link := fmt.Sprintf("https://t.me/%s?start=ref_%d", botUsername, telegramID)

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("Share your link:\n%s\n\nYou get 1 ticket for each friend who verifies and receives their welcome ticket.\nTotal valid referrals: %d", link, profile.ValidReferrals)))
		return nil
	}, th.TextEqual(btnRefer))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		profile, err := b.Service.GetProfile(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		paymentID := "Not set"
		if profile.PaymentID != nil {
			paymentID = *profile.PaymentID
		}
		lastRound := "-"
		if profile.LastWinRound != nil {
			lastRound = strconv.FormatInt(*profile.LastWinRound, 10)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("Your Profile\nUPI: %s\nBalance: %s\nTotal Won: %s\nLast Round Won: %s\nTotal Tickets: %d",
				paymentID, fmtMoney(profile.BalanceCents), fmtMoney(profile.TotalWonCents), lastRound, profile.TicketCount)))
		return nil
	}, th.TextEqual(btnProfile))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("Join our channel: %s\nAfter joining, tap Verify & Claim in the /start message.", b.Cfg.RequiredChannel)))
		return nil
	}, th.TextEqual(btnJoinChannel))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		rows, err := b.Service.LeaderboardByEarnings(ctx.Context(), leaderboardLimit)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		if len(rows) == 0 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "No winners yet."))
			return nil
		}
		var sb strings.Builder
		sb.WriteString("Top 10 Earnings\n")
		for i, row := range rows {
			fmt.Fprintf(&sb, "%d. User %d – %s\n", i+1, row.TelegramID, fmtMoney(row.Score))
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), sb.String()))
		return nil
	}, th.TextEqual(btnEarnings))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		rows, err := b.Service.LeaderboardByReferrals(ctx.Context(), leaderboardLimit)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		if len(rows) == 0 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "No referrals yet."))
			return nil
		}
		var sb strings.Builder
		sb.WriteString("Top Referrers\n")
		for i, row := range rows {
			fmt.Fprintf(&sb, "%d. User %d – %d valid\n", i+1, row.TelegramID, row.Score)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), sb.String()))
		return nil
	}, th.TextEqual(btnReferLeader))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		profile, err := b.Service.GetProfile(ctx.Context(), telegramID)
		if err != nil {
			return b.replyError(ctx, telegramID, err)
		}
		current := "Not set"
		if profile.PaymentID != nil {
			current = *profile.PaymentID
		}
		b.setState(telegramID, stateWaitingPaymentID)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("Your current UPI: %s\nSend the new UPI ID.", current)))
		return nil
	}, th.TextEqual(btnChangeUPI))

	handler.Handle(b.handleWithdrawRequest, th.TextEqual(btnWithdraw))
	handler.Handle(b.handleWithdrawAction, th.CallbackDataPrefix("wd:"))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"Extra tickets:\n• Invite friends with your referral link – you earn a ticket when they verify and claim.\n• Watch the channel for bonus events."))
		return nil
	}, th.TextEqual(btnHelp))

	b.registerAdminHandlers(handler)

	// Free-text input for the states set above; must stay last so the menu
	// buttons and commands match first.
	handler.Handle(b.handleTextInput, th.AnyMessageWithText())

	handler.Start()
}

func (b *Bot) handleVerify(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	telegramID := callback.From.ID

	result, err := b.Service.AwardWelcomeTicket(ctx.Context(), telegramID)
	switch {
	case err == nil:
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			fmt.Sprintf("🎉 Welcome ticket granted! Your code: %s", result.Code),
		).WithReplyMarkup(mainMenu()))
		if result.ReferrerTelegramID != nil {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(*result.ReferrerTelegramID),
				fmt.Sprintf("🎟️ A friend you invited just verified – you earned ticket %s!", result.ReferrerCode)))
		}
	case errors.Is(err, lottery.ErrNotChannelMember):
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID).
			WithText("Please join the channel first.").WithShowAlert())
		return nil
	case errors.Is(err, lottery.ErrAlreadyClaimed):
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"You already claimed your welcome ticket. You can still refer and earn.").WithReplyMarkup(mainMenu()))
	case errors.Is(err, lottery.ErrDeviceRejected):
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"No welcome ticket granted (same device detected). You can still refer and earn.").WithReplyMarkup(mainMenu()))
	default:
		return b.replyError(ctx, telegramID, err)
	}

	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	return nil
}

func (b *Bot) handleWithdrawRequest(ctx *th.Context, update telego.Update) error {
	telegramID := update.Message.From.ID

	withdrawal, err := b.Service.RequestWithdrawal(ctx.Context(), telegramID)
	switch {
	case errors.Is(err, lottery.ErrNoPaymentID):
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"Link your UPI first via Change UPI."))
		return nil
	case errors.Is(err, lottery.ErrBelowMinimum):
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"Minimum balance for withdrawal is ₹1.00."))
		return nil
	case err != nil:
		return b.replyError(ctx, telegramID, err)
	}

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Confirm Withdraw").WithCallbackData(fmt.Sprintf("wd:confirm:%d", withdrawal.ID)),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("❌ Cancel").WithCallbackData(fmt.Sprintf("wd:cancel:%d", withdrawal.ID)),
		),
	)
	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
		fmt.Sprintf("Withdraw full balance?\nUPI: %s\nAmount: %s", withdrawal.PaymentID, fmtMoney(withdrawal.AmountCents)),
	).WithReplyMarkup(keyboard))
	return nil
}

func (b *Bot) handleWithdrawAction(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	telegramID := callback.From.ID

	parts := strings.Split(callback.Data, ":")
	if len(parts) != 3 {
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}

	switch parts[1] {
	case "confirm":
		err = b.Service.ConfirmWithdrawal(ctx.Context(), uint(id))
		switch {
		case err == nil:
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
				"✅ Withdrawal confirmed. Payout is on its way."))
		case errors.Is(err, lottery.ErrInsufficientBalance):
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
				"Balance changed since the request, withdrawal refused."))
		case errors.Is(err, lottery.ErrWithdrawalClosed):
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
				"This withdrawal was already processed."))
		default:
			return b.replyError(ctx, telegramID, err)
		}
	case "cancel":
		if err := b.Service.CancelWithdrawal(ctx.Context(), uint(id)); err != nil && !errors.Is(err, lottery.ErrWithdrawalClosed) {
			return b.replyError(ctx, telegramID, err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "Withdrawal cancelled."))
	}

	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	return nil
}

func (b *Bot) handleTextInput(ctx *th.Context, update telego.Update) error {
	telegramID := update.Message.From.ID
	text := strings.TrimSpace(update.Message.Text)

	b.StatesMu.RLock()
	state, ok := b.UserStates[telegramID]
	b.StatesMu.RUnlock()
	if !ok {
		return nil
	}

	if state == stateWaitingPaymentID {
		err := b.Service.LinkPaymentID(ctx.Context(), telegramID, text)
		switch {
		case errors.Is(err, lottery.ErrInvalidPaymentID):
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
				"That doesn't look like a UPI ID. Try again (e.g., name@bank)."))
			return nil
		case errors.Is(err, lottery.ErrDuplicatePaymentID):
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
				"This UPI is already linked to another account. Choose a different one."))
			return nil
		case err != nil:
			return b.replyError(ctx, telegramID, err)
		}
		b.clearState(telegramID)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "✅ UPI updated."))
		return nil
	}

	if strings.HasPrefix(state, "admin:") {
		return b.handleAdminInput(ctx, telegramID, state, text)
	}
	return nil
}

func (b *Bot) replyError(ctx *th.Context, telegramID int64, err error) error {
	b.Log.Errorw("operation failed", "telegram_id", telegramID, "error", err)
	msg := "Something went wrong, please try again."
	if errors.Is(err, lottery.ErrStoreUnavailable) {
		msg = "Service is busy, please try again in a moment."
	}
	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), msg))
	return nil
}
