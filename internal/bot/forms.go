package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"schedulink/internal/access"
	"schedulink/internal/events"
	"schedulink/internal/metrics"
	"schedulink/internal/models"
	"schedulink/internal/validate"
)

const skipValue = "-"

type formField struct {
	step   string
	key    string
	field  string // validation field name
	prompt string
}

var userFields = []formField{
	{stepUserName, "name", "name", "Enter the user's name:"},
	{stepUserEmail, "email", "email", "Enter the email:"},
	{stepUserPhone, "phone", "phone", "Enter the phone number:"},
}

var slotFields = []formField{
	{stepSlotTitle, "title", "title", "Enter the slot title:"},
	{stepSlotDescription, "description", "", "Enter a description, or - to skip:"},
	{stepSlotDate, "date", "date", "Enter the date (YYYY-MM-DD):"},
	{stepSlotStart, "start_time", "start_time", "Enter the start time (HH:MM):"},
	{stepSlotEnd, "end_time", "end_time", "Enter the end time (HH:MM):"},
	{stepSlotOwner, "user_id", "", "Assign to a user id, or - for nobody:"},
}

func nextField(fields []formField, step string) (formField, bool) {
	for i, f := range fields {
		if f.step == step && i+1 < len(fields) {
			return fields[i+1], true
		}
	}
	return formField{}, false
}

func currentField(fields []formField, step string) (formField, bool) {
	for _, f := range fields {
		if f.step == step {
			return f, true
		}
	}
	return formField{}, false
}

// firstInvalid returns the earliest field in form order that failed.
func firstInvalid(fields []formField, verr *validate.ValidationError) (formField, bool) {
	for _, f := range fields {
		if f.field != "" && verr.Has(f.field) {
			return f, true
		}
	}
	return formField{}, false
}

func describeValidation(fields []formField, verr *validate.ValidationError) string {
	var sb strings.Builder
	sb.WriteString("Please fix:\n")
	for _, f := range fields {
		if f.field != "" && verr.Has(f.field) {
			sb.WriteString("• " + verr.Message(f.field) + "\n")
		}
	}
	return sb.String()
}

func (b *Bot) startUserForm(ctx context.Context, chatID int64) {
	if !b.allowed(ctx, chatID, access.PermManageUsers) {
		return
	}
	b.state.start(chatID, userFields[0].step)
	b.reply(ctx, chatID, "New user. Send /cancel to stop.\n\n"+userFields[0].prompt)
}

func (b *Bot) startSlotForm(ctx context.Context, chatID int64) {
	if !b.allowed(ctx, chatID, access.PermCreateSlots) {
		return
	}
	b.state.start(chatID, slotFields[0].step)
	b.reply(ctx, chatID, "New slot. Send /cancel to stop.\n\n"+slotFields[0].prompt)
}

// collect stores text for the current step and either prompts for the next
// field or returns the completed dialog.
func (b *Bot) collect(ctx context.Context, st *models.DialogState, fields []formField, text string) (*models.DialogState, bool) {
	f, ok := currentField(fields, st.Step)
	if !ok {
		b.state.reset(st.ChatID)
		return nil, false
	}
	next, more := nextField(fields, st.Step)
	step := st.Step
	if more {
		step = next.step
	}
	cur, ok := b.state.record(st.ChatID, st.Step, f.key, text, step)
	if !ok {
		return nil, false
	}
	if more {
		b.reply(ctx, st.ChatID, next.prompt)
		return nil, false
	}
	return cur, true
}

// rejectForm reports validation errors and moves the dialog back to the first
// bad field. Fields already entered are kept.
func (b *Bot) rejectForm(ctx context.Context, st *models.DialogState, form string, fields []formField, verr *validate.ValidationError) {
	metrics.IncValidationFailure(form, verr.Fields)
	text := describeValidation(fields, verr)
	if f, ok := firstInvalid(fields, verr); ok {
		b.state.advance(st.ChatID, f.step)
		text += "\n" + f.prompt
	} else {
		b.state.reset(st.ChatID)
	}
	b.reply(ctx, st.ChatID, text)
}

func (b *Bot) continueUserForm(ctx context.Context, st *models.DialogState, text string) {
	st, done := b.collect(ctx, st, userFields, text)
	if !done {
		return
	}

	in := models.NewUser{
		Name:  strings.TrimSpace(st.GetString("name")),
		Email: strings.TrimSpace(st.GetString("email")),
		Phone: strings.TrimSpace(st.GetString("phone")),
	}
	if err := b.validator.User(in); err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			b.rejectForm(ctx, st, "user", userFields, verr)
		}
		return
	}

	u, err := b.api.CreateUser(ctx, in)
	b.state.reset(st.ChatID)
	if err != nil {
		b.reply(ctx, st.ChatID, "Failed to create user: "+err.Error())
		return
	}
	b.publish(ctx, events.UserCreated, u)
	b.reply(ctx, st.ChatID, fmt.Sprintf("User created: #%d %s", u.ID, u.Name))
}

func (b *Bot) continueSlotForm(ctx context.Context, st *models.DialogState, text string) {
	if st.Step == stepSlotOwner && text != skipValue {
		if id, err := cast.ToInt64E(text); err != nil || id <= 0 {
			b.reply(ctx, st.ChatID, "User id must be a positive number, or - for nobody.")
			return
		}
	}
	st, done := b.collect(ctx, st, slotFields, text)
	if !done {
		return
	}

	in := models.NewSlot{
		Title:     strings.TrimSpace(st.GetString("title")),
		Date:      strings.TrimSpace(st.GetString("date")),
		StartTime: strings.TrimSpace(st.GetString("start_time")),
		EndTime:   strings.TrimSpace(st.GetString("end_time")),
	}
	if d := strings.TrimSpace(st.GetString("description")); d != skipValue {
		in.Description = models.StringPtr(d)
	}
	if owner := st.GetString("user_id"); owner != skipValue {
		in.UserID = models.Int64Ptr(cast.ToInt64(owner))
	}

	if err := b.validator.Slot(in); err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			b.rejectForm(ctx, st, "slot", slotFields, verr)
		}
		return
	}

	s, err := b.api.CreateSlot(ctx, in)
	b.state.reset(st.ChatID)
	if err != nil {
		b.reply(ctx, st.ChatID, "Failed to create slot: "+err.Error())
		return
	}
	b.slots.Put(*s)
	b.reply(ctx, st.ChatID, fmt.Sprintf("Slot created: %s on %s, %s-%s", s.Title, s.Date, s.StartTime, s.EndTime))
	b.publish(ctx, events.SlotCreated, s)
}

func (b *Bot) publish(ctx context.Context, eventType string, payload any) {
	if b.events == nil {
		return
	}
	if err := b.events.PublishJSON(eventType, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}
