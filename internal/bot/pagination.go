package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"schedulink/internal/models"
)

const slotsPerPage = 8

// listView is what one chat is looking at. MessageID is 0 until the list has
// been sent once; later renders edit that message in place.
type listView struct {
	MessageID     int
	Page          int
	Date          string
	OnlyAvailable bool
}

func (v listView) match(s models.Slot) bool {
	if v.Date != "" && s.Date != v.Date {
		return false
	}
	if v.OnlyAvailable && s.IsBooked {
		return false
	}
	return true
}

type listRegistry struct {
	mu    sync.Mutex
	views map[int64]listView
}

func newListRegistry() *listRegistry {
	return &listRegistry{views: make(map[int64]listView)}
}

func (r *listRegistry) get(chatID int64) (listView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[chatID]
	return v, ok
}

func (r *listRegistry) set(chatID int64, v listView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[chatID] = v
}

func (r *listRegistry) all() map[int64]listView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]listView, len(r.views))
	for k, v := range r.views {
		out[k] = v
	}
	return out
}

type icons struct {
	available, booked, pending string
}

func iconsFor(theme models.Theme) icons {
	if theme == models.ThemeDark {
		return icons{available: "⚪", booked: "⚫", pending: "⏳"}
	}
	return icons{available: "🟢", booked: "🔴", pending: "⏳"}
}

// renderSlotList sends or edits the slot list of chatID from the controller's
// current board and remembers the view.
func (b *Bot) renderSlotList(ctx context.Context, chatID int64, view listView) {
	var slots []models.Slot
	for _, s := range b.slots.Slots() {
		if view.match(s) {
			slots = append(slots, s)
		}
	}

	theme := models.ThemeLight
	if p, err := b.prefs.Load(ctx, profileOf(chatID)); err == nil {
		theme = p.Theme
	}
	ic := iconsFor(theme)

	pages := (len(slots) + slotsPerPage - 1) / slotsPerPage
	if pages == 0 {
		pages = 1
	}
	if view.Page >= pages {
		view.Page = pages - 1
	}
	if view.Page < 0 {
		view.Page = 0
	}
	startIdx := view.Page * slotsPerPage
	endIdx := startIdx + slotsPerPage
	if endIdx > len(slots) {
		endIdx = len(slots)
	}

	var message strings.Builder
	title := "Slots"
	if view.OnlyAvailable {
		title = "Available slots"
	}
	if view.Date != "" {
		title += " on " + view.Date
	}
	message.WriteString(title + "\n\n")
	if len(slots) == 0 {
		message.WriteString("No slots found.")
	} else {
		message.WriteString(fmt.Sprintf("Page %d of %d\n\n", view.Page+1, pages))
	}

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, s := range slots[startIdx:endIdx] {
		icon := ic.available
		if s.IsBooked {
			icon = ic.booked
		}
		message.WriteString(fmt.Sprintf("%d. %s %s\n   %s %s-%s\n", startIdx+i+1, icon, s.Title, s.Date, s.StartTime, s.EndTime))
		if d := s.DescriptionText(); d != "" {
			message.WriteString("   " + d + "\n")
		}
		if s.IsBooked {
			message.WriteString(fmt.Sprintf("   booked by user #%d\n", s.BookedBy()))
		}

		var btn tgbotapi.InlineKeyboardButton
		switch {
		case b.slots.Pending(s.ID):
			btn = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s: updating…", ic.pending, s.Title), "noop")
		case s.IsBooked:
			btn = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Cancel %s %s", s.Title, s.StartTime), fmt.Sprintf("cancel:%d", s.ID))
		default:
			btn = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Book %s %s", s.Title, s.StartTime), fmt.Sprintf("book:%d", s.ID))
		}
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{btn})
	}

	var navButtons []tgbotapi.InlineKeyboardButton
	if view.Page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", fmt.Sprintf("page:%d", view.Page-1)))
	}
	if endIdx < len(slots) {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("page:%d", view.Page+1)))
	}
	if len(navButtons) > 0 {
		keyboard = append(keyboard, navButtons)
	}

	if view.MessageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, view.MessageID, message.String())
		if len(keyboard) > 0 {
			markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
			edit.ReplyMarkup = &markup
		}
		b.send(ctx, edit)
	} else {
		msg := tgbotapi.NewMessage(chatID, message.String())
		if len(keyboard) > 0 {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
		}
		if sent, ok := b.send(ctx, msg); ok {
			view.MessageID = sent.MessageID
		}
	}
	b.lists.set(chatID, view)
}
