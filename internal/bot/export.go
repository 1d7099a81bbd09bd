package bot

import (
	"bytes"
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"schedulink/internal/access"
	"schedulink/internal/report"
)

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	if !b.allowed(ctx, chatID, access.PermExport) {
		return
	}

	src := report.Sources{Slots: b.slots, Users: b.api}
	if b.journal != nil {
		src.Journal = b.journal
	}
	in, err := report.Gather(ctx, src, time.Now())
	if err != nil {
		b.reply(ctx, chatID, "Failed to load report data: "+err.Error())
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, in); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("export failed")
		b.reply(ctx, chatID, "Could not build the report.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: report.Filename(in.Now), Bytes: buf.Bytes()})
	doc.Caption = "Slots report"
	b.send(ctx, doc)
}
