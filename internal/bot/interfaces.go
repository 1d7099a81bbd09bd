package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"schedulink/internal/access"
	"schedulink/internal/booking"
	"schedulink/internal/models"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// API is the part of the REST client used directly by the views.
type API interface {
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UserBookings(ctx context.Context, id int64) ([]models.Slot, error)
	CreateSlot(ctx context.Context, in models.NewSlot) (*models.Slot, error)
	Health(ctx context.Context) (*models.Health, error)
}

// Slots is the slot lifecycle controller.
type Slots interface {
	Refresh(ctx context.Context, f models.SlotFilter) ([]models.Slot, error)
	Slots() []models.Slot
	Slot(id int64) (models.Slot, bool)
	Put(s models.Slot)
	Pending(id int64) bool
	Book(ctx context.Context, slotID, userID int64) booking.Result
	Cancel(ctx context.Context, slotID int64) booking.Result
}

// Preferences is the per-chat session.
type Preferences interface {
	Load(ctx context.Context, profile string) (models.Preferences, error)
	IsNewUser(ctx context.Context, profile string) (bool, error)
	ToggleTheme(ctx context.Context, profile string) (models.Preferences, error)
	SetRole(ctx context.Context, profile string, role models.Role) (models.Preferences, error)
	Complete(ctx context.Context, profile string, role models.Role) (models.Preferences, error)
}

// Access guards master-only views.
type Access interface {
	Require(ctx context.Context, profile string, perm access.Permission) error
	Allowed(p models.Preferences, perm access.Permission) bool
	CanBecomeMaster(profile string) bool
}

// Journal supplies recent booking attempts for exports.
type Journal interface {
	RecentJournal(ctx context.Context, limit int) ([]models.JournalEntry, error)
}

// EventPublisher announces created users and slots.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// Reminders queues a heads-up for the chat that booked a slot.
type Reminders interface {
	Schedule(ctx context.Context, chatID int64, slot models.Slot) error
	Cancel(ctx context.Context, slotID int64) error
}
