package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"schedulink/internal/access"
	"schedulink/internal/booking"
	"schedulink/internal/events"
	"schedulink/internal/models"
)

// handleList loads the board from the server and sends a fresh list. The
// board is always loaded unfiltered because it is shared by every chat; the
// view filters locally.
func (b *Bot) handleList(ctx context.Context, chatID int64, view listView) {
	if view.Date != "" {
		if _, err := models.ParseDate(view.Date, nil); err != nil {
			b.reply(ctx, chatID, "Date must look like 2025-01-31.")
			return
		}
	}
	if _, err := b.slots.Refresh(ctx, models.SlotFilter{}); err != nil {
		b.reply(ctx, chatID, "Failed to load slots: "+err.Error())
		return
	}
	view.MessageID = 0
	b.renderSlotList(ctx, chatID, view)
}

func (b *Bot) handlePage(ctx context.Context, chatID int64, messageID int, arg string) {
	page, err := cast.ToIntE(arg)
	if err != nil {
		return
	}
	view, _ := b.lists.get(chatID)
	view.Page = page
	view.MessageID = messageID
	b.renderSlotList(ctx, chatID, view)
}

// handleBookPick asks which user books the slot.
func (b *Bot) handleBookPick(ctx context.Context, chatID int64, arg string) {
	slotID, err := cast.ToInt64E(arg)
	if err != nil {
		return
	}
	s, ok := b.slots.Slot(slotID)
	if !ok {
		b.reply(ctx, chatID, "Failed to book slot: "+booking.Reason(booking.ErrUnknownSlot))
		return
	}
	users, err := b.api.ListUsers(ctx)
	if err != nil {
		b.reply(ctx, chatID, "Failed to load users: "+err.Error())
		return
	}
	if len(users) == 0 {
		b.reply(ctx, chatID, "There are no users yet. A master can add one with /newuser.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, u := range users {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(u.Name, fmt.Sprintf("as:%d:%d", s.ID, u.ID)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Who is booking %s on %s at %s?", s.Title, s.Date, s.StartTime))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(ctx, msg)
}

func (b *Bot) handleBookAs(ctx context.Context, chatID int64, arg string) {
	slotArg, userArg, _ := strings.Cut(arg, ":")
	slotID, err := cast.ToInt64E(slotArg)
	if err != nil {
		return
	}
	userID, _ := cast.ToInt64E(userArg)

	res := b.slots.Book(ctx, slotID, userID)
	switch {
	case res.OK():
		b.reply(ctx, chatID, "Slot booked successfully!")
		b.scheduleReminder(ctx, chatID, res.Slot)
	case errors.Is(res.Err, booking.ErrUserRequired):
		b.reply(ctx, chatID, res.Reason())
	default:
		b.reply(ctx, chatID, "Failed to book slot: "+res.Reason())
	}
	b.refreshAfterChange(ctx, chatID, res)
}

func (b *Bot) handleCancel(ctx context.Context, chatID int64, arg string) {
	slotID, err := cast.ToInt64E(arg)
	if err != nil {
		return
	}
	res := b.slots.Cancel(ctx, slotID)
	if res.OK() {
		b.reply(ctx, chatID, "Booking cancelled successfully!")
		b.dropReminders(ctx, slotID)
	} else {
		b.reply(ctx, chatID, "Failed to cancel booking: "+res.Reason())
	}
	b.refreshAfterChange(ctx, chatID, res)
}

// refreshAfterChange reloads the board after a successful change, or after a
// failure that suggests the local copy is stale, and redraws the chat's list.
func (b *Bot) refreshAfterChange(ctx context.Context, chatID int64, res booking.Result) {
	var ab *booking.AlreadyBookedError
	stale := res.OK() || errors.As(res.Err, &ab) || errors.Is(res.Err, booking.ErrNotBooked)
	if stale {
		if _, err := b.slots.Refresh(ctx, models.SlotFilter{}); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("refresh after change failed")
		}
	}
	if view, ok := b.lists.get(chatID); ok {
		b.renderSlotList(ctx, chatID, view)
	}
}

func (b *Bot) handleMyBookings(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		users, err := b.api.ListUsers(ctx)
		if err != nil {
			b.reply(ctx, chatID, "Failed to load users: "+err.Error())
			return
		}
		if len(users) == 0 {
			b.reply(ctx, chatID, "There are no users yet.")
			return
		}
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, u := range users {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(u.Name, fmt.Sprintf("mine:%d", u.ID)),
			))
		}
		msg := tgbotapi.NewMessage(chatID, "Whose bookings?")
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		b.send(ctx, msg)
		return
	}

	userID, err := cast.ToInt64E(arg)
	if err != nil || userID <= 0 {
		b.reply(ctx, chatID, "User id must be a positive number.")
		return
	}
	slots, err := b.api.UserBookings(ctx, userID)
	if err != nil {
		b.reply(ctx, chatID, "Failed to load bookings: "+err.Error())
		return
	}
	if len(slots) == 0 {
		b.reply(ctx, chatID, "No bookings yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Bookings of user #%d:\n\n", userID))
	for _, s := range slots {
		sb.WriteString(fmt.Sprintf("• %s, %s %s-%s\n", s.Title, s.Date, s.StartTime, s.EndTime))
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) handleUsers(ctx context.Context, chatID int64) {
	if !b.allowed(ctx, chatID, access.PermManageUsers) {
		return
	}
	users, err := b.api.ListUsers(ctx)
	if err != nil {
		b.reply(ctx, chatID, "Failed to load users: "+err.Error())
		return
	}
	if len(users) == 0 {
		b.reply(ctx, chatID, "No users yet. Add one with /newuser.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Users:\n\n")
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("#%d %s, %s", u.ID, u.Name, u.Email))
		if u.Phone != "" {
			sb.WriteString(", " + u.Phone)
		}
		sb.WriteString("\n")
	}
	b.reply(ctx, chatID, sb.String())
}

// Subscribe redraws every open list when a slot changes, including when a
// change starts so the optimistic state and the disabled button show up.
func (b *Bot) Subscribe(bus *events.EventBus) {
	redraw := func(ev events.Event) error {
		ctx := b.logger.WithContext(context.Background())
		for chatID, view := range b.lists.all() {
			if view.MessageID == 0 {
				continue
			}
			b.renderSlotList(ctx, chatID, view)
		}
		return nil
	}
	bus.Subscribe(events.SlotPending, redraw)
	bus.Subscribe(events.SlotBooked, redraw)
	bus.Subscribe(events.SlotCancelled, redraw)
	bus.Subscribe(events.SlotRolledBack, redraw)
	bus.Subscribe(events.SlotCreated, redraw)
}
