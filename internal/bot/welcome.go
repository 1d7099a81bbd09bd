package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"schedulink/internal/models"
)

const welcomeText = `Welcome to Schedulink!

Browse time slots and book them for a user. Masters can also add users and slots.

How will you use it?`

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	isNew, err := b.prefs.IsNewUser(ctx, profileOf(chatID))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("load preferences failed")
		b.reply(ctx, chatID, "Could not load your settings, please try again.")
		return
	}
	if isNew {
		b.sendRolePicker(ctx, chatID, welcomeText)
		return
	}
	b.sendMainMenu(ctx, chatID, "Welcome back! Choose an action:")
}

func (b *Bot) sendRolePicker(ctx context.Context, chatID int64, text string) {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Guest: book slots", "role:"+string(models.RoleGuest)),
		),
	}
	if b.access.CanBecomeMaster(profileOf(chatID)) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛠 Master: manage users and slots", "role:"+string(models.RoleMaster)),
		))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(ctx, msg)
}

// handleRole finishes the welcome flow, or changes the role later on.
func (b *Bot) handleRole(ctx context.Context, chatID int64, arg string) {
	profile := profileOf(chatID)
	role, ok := models.ParseRole(arg)
	if !ok {
		return
	}
	if role == models.RoleMaster && !b.access.CanBecomeMaster(profile) {
		b.reply(ctx, chatID, "You are not allowed to act as master.")
		return
	}
	if _, err := b.prefs.Complete(ctx, profile, role); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("profile", profile).Msg("save role failed")
		b.reply(ctx, chatID, "Could not save your choice, please try again.")
		return
	}
	b.sendMainMenu(ctx, chatID, "You are set up as "+string(role)+". Send /help for all commands.")
}

func (b *Bot) handleTheme(ctx context.Context, chatID int64) {
	p, err := b.prefs.ToggleTheme(ctx, profileOf(chatID))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("toggle theme failed")
		b.reply(ctx, chatID, "Could not change the theme, please try again.")
		return
	}
	b.reply(ctx, chatID, "Theme switched to "+string(p.Theme)+".")
	if view, ok := b.lists.get(chatID); ok && view.MessageID != 0 {
		b.renderSlotList(ctx, chatID, view)
	}
}
