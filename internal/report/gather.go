package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"schedulink/internal/models"
)

// JournalLimit caps how many journal rows go into a report.
const JournalLimit = 200

type SlotLoader interface {
	Refresh(ctx context.Context, f models.SlotFilter) ([]models.Slot, error)
}

type UserLoader interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

type JournalLoader interface {
	RecentJournal(ctx context.Context, limit int) ([]models.JournalEntry, error)
}

// Sources feeds Gather. Journal may be nil.
type Sources struct {
	Slots   SlotLoader
	Users   UserLoader
	Journal JournalLoader
}

// Gather loads slots, users and recent journal entries concurrently. A
// journal failure is logged and leaves the sheet out; slot or user failures
// abort.
func Gather(ctx context.Context, src Sources, now time.Time) (Input, error) {
	in := Input{Now: now}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slots, err := src.Slots.Refresh(gctx, models.SlotFilter{})
		if err != nil {
			return fmt.Errorf("load slots: %w", err)
		}
		in.Slots = slots
		return nil
	})
	g.Go(func() error {
		users, err := src.Users.ListUsers(gctx)
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		in.Users = users
		return nil
	})
	if src.Journal != nil {
		g.Go(func() error {
			entries, err := src.Journal.RecentJournal(gctx, JournalLimit)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("journal unavailable for report")
				return nil
			}
			in.Journal = entries
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Input{}, err
	}
	return in, nil
}
