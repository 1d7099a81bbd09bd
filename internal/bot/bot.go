package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"schedulink/internal/access"
	"schedulink/internal/validate"
)

// Options wires the bot to the rest of the application. API, Slots, Prefs and
// Access are required.
type Options struct {
	API       API
	Slots     Slots
	Prefs     Preferences
	Access    Access
	Journal   Journal
	Events    EventPublisher
	Reminders Reminders
	Validator *validate.Validator

	DialogTimeout time.Duration
	UpdateTimeout int
	Logger        *zerolog.Logger
}

// Bot is the Telegram front end: slot lists with inline book/cancel buttons,
// user and slot forms, and per-chat preferences.
type Bot struct {
	tg        telegramClient
	api       API
	slots     Slots
	prefs     Preferences
	access    Access
	journal   Journal
	events    EventPublisher
	reminders Reminders
	validator *validate.Validator
	state     *stateStore
	lists     *listRegistry
	queue     *chatQueue
	timeout   int
	logger    *zerolog.Logger

	wg sync.WaitGroup
}

func New(token string, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: api}, opts)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, opts Options) (*Bot, error) {
	return newBot(tg, opts)
}

func newBot(tg telegramClient, opts Options) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if opts.API == nil || opts.Slots == nil || opts.Prefs == nil || opts.Access == nil {
		return nil, fmt.Errorf("bot: api, slots, prefs and access are required")
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "bot").Logger()
	if opts.Validator == nil {
		opts.Validator = validate.New(nil)
	}
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = 60
	}
	return &Bot{
		tg:        tg,
		api:       opts.API,
		slots:     opts.Slots,
		prefs:     opts.Prefs,
		access:    opts.Access,
		journal:   opts.Journal,
		events:    opts.Events,
		reminders: opts.Reminders,
		validator: opts.Validator,
		state:     newStateStore(opts.DialogTimeout),
		lists:     newListRegistry(),
		queue:     newChatQueue(),
		timeout:   opts.UpdateTimeout,
		logger:    &l,
	}, nil
}

func profileOf(chatID int64) string {
	return fmt.Sprintf("chat:%d", chatID)
}

const (
	btnSlots      = "📅 Slots"
	btnAvailable  = "🟢 Available"
	btnMyBookings = "📌 My bookings"
	btnTheme      = "🌓 Theme"
	btnUsers      = "👥 Users"
	btnNewUser    = "➕ New user"
	btnNewSlot    = "🗓 New slot"
	btnExport     = "📊 Export"
)

var (
	guestMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSlots),
			tgbotapi.NewKeyboardButton(btnAvailable),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMyBookings),
			tgbotapi.NewKeyboardButton(btnTheme),
		),
	)

	masterMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSlots),
			tgbotapi.NewKeyboardButton(btnAvailable),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnUsers),
			tgbotapi.NewKeyboardButton(btnNewUser),
			tgbotapi.NewKeyboardButton(btnNewSlot),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMyBookings),
			tgbotapi.NewKeyboardButton(btnTheme),
			tgbotapi.NewKeyboardButton(btnExport),
		),
	)

	// menu buttons map onto commands
	buttonCommands = map[string]string{
		btnSlots:      "/slots",
		btnAvailable:  "/available",
		btnMyBookings: "/mybookings",
		btnTheme:      "/theme",
		btnUsers:      "/users",
		btnNewUser:    "/newuser",
		btnNewSlot:    "/newslot",
		btnExport:     "/export",
	}
)

const helpText = `Commands:
/slots [YYYY-MM-DD] - list slots
/available - list free slots
/mybookings [user id] - slots booked by a user
/theme - switch light/dark
/role - change role
/health - backend status
/cancel - abort the current form

Master only:
/users - list users
/newuser - add a user
/newslot - add a slot
/export - download slots as xlsx`

func (b *Bot) sendMainMenu(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = guestMenu
	if p, err := b.prefs.Load(ctx, profileOf(chatID)); err == nil && b.access.Allowed(p, access.PermManageUsers) {
		msg.ReplyMarkup = masterMenu
	}
	b.send(ctx, msg)
}

// Start polls updates until ctx is done. Updates from one chat are handled in
// order; different chats run concurrently. Start waits for queued updates
// before returning.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.dispatch(updateCtx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	b.wg.Add(1)
	b.queue.push(updateChatID(&update), func() {
		defer b.wg.Done()
		b.handleUpdate(ctx, &update)
	})
}

func updateChatID(update *tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("chat_id", update.Message.Chat.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if cmd, ok := buttonCommands[text]; ok {
		text = cmd
	}

	// commands interrupt any active form
	if strings.HasPrefix(text, "/") {
		cmd, arg, _ := strings.Cut(text, " ")
		cmd, _, _ = strings.Cut(cmd, "@")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "/start":
			b.state.reset(chatID)
			b.handleStart(ctx, chatID)
		case "/help":
			b.reply(ctx, chatID, helpText)
		case "/cancel":
			b.state.reset(chatID)
			b.sendMainMenu(ctx, chatID, "Operation cancelled.")
		case "/slots":
			b.state.reset(chatID)
			b.handleList(ctx, chatID, listView{Date: arg})
		case "/available":
			b.state.reset(chatID)
			b.handleList(ctx, chatID, listView{Date: arg, OnlyAvailable: true})
		case "/mybookings":
			b.handleMyBookings(ctx, chatID, arg)
		case "/theme":
			b.handleTheme(ctx, chatID)
		case "/role":
			b.sendRolePicker(ctx, chatID, "Choose your role:")
		case "/health":
			b.handleHealth(ctx, chatID)
		case "/users":
			b.handleUsers(ctx, chatID)
		case "/newuser":
			b.startUserForm(ctx, chatID)
		case "/newslot":
			b.startSlotForm(ctx, chatID)
		case "/export":
			b.handleExport(ctx, chatID)
		default:
			b.reply(ctx, chatID, "Unknown command. Send /help for the list.")
		}
		return
	}

	st := b.state.get(chatID)
	switch {
	case strings.HasPrefix(st.Step, "user_"):
		b.continueUserForm(ctx, st, text)
	case strings.HasPrefix(st.Step, "slot_"):
		b.continueSlotForm(ctx, st, text)
	default:
		b.reply(ctx, chatID, "Send /help to see what I can do.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	data := cq.Data
	chatID := cq.Message.Chat.ID
	if data == "noop" {
		b.answerCallback(ctx, cq.ID, "")
		return
	}

	prefix, rest, _ := strings.Cut(data, ":")
	switch prefix {
	case "page":
		b.answerCallback(ctx, cq.ID, "")
		b.handlePage(ctx, chatID, cq.Message.MessageID, rest)
	case "book":
		b.answerCallback(ctx, cq.ID, "")
		b.handleBookPick(ctx, chatID, rest)
	case "as":
		b.answerCallback(ctx, cq.ID, "Booking…")
		b.handleBookAs(ctx, chatID, rest)
	case "cancel":
		b.answerCallback(ctx, cq.ID, "Cancelling…")
		b.handleCancel(ctx, chatID, rest)
	case "mine":
		b.answerCallback(ctx, cq.ID, "")
		b.handleMyBookings(ctx, chatID, rest)
	case "role":
		b.answerCallback(ctx, cq.ID, "")
		b.handleRole(ctx, chatID, rest)
	default:
		b.answerCallback(ctx, cq.ID, "")
	}
}

func (b *Bot) handleHealth(ctx context.Context, chatID int64) {
	h, err := b.api.Health(ctx)
	if err != nil {
		b.reply(ctx, chatID, "❌ "+err.Error())
		return
	}
	text := "✅ Backend: " + h.Status
	if h.Service != "" {
		text += " (" + h.Service + ")"
	}
	b.reply(ctx, chatID, text)
}

// allowed replies with a refusal and returns false when chatID lacks perm.
func (b *Bot) allowed(ctx context.Context, chatID int64, perm access.Permission) bool {
	err := b.access.Require(ctx, profileOf(chatID), perm)
	if err == nil {
		return true
	}
	var denied *access.AccessDeniedError
	if errors.As(err, &denied) {
		b.reply(ctx, chatID, "This is available to masters only. Use /role to switch.")
		return false
	}
	zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("access check failed")
	b.reply(ctx, chatID, "Could not check your role, please try again.")
	return false
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, bool) {
	m, err := b.tg.Send(c)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("telegram send failed")
		return m, false
	}
	return m, true
}

func (b *Bot) answerCallback(ctx context.Context, id, text string) {
	if _, err := b.tg.Request(tgbotapi.NewCallback(id, text)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("answer callback failed")
	}
}
