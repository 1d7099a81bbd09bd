package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cast"

	"schedulink/internal/access"
	"schedulink/internal/metrics"
	"schedulink/internal/models"
	"schedulink/internal/report"
	"schedulink/internal/validate"
)

// errFailed means the command already printed why it failed.
var errFailed = errors.New("failed")

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "users":
		return a.users(ctx, rest)
	case "slots":
		return a.slotsCmd(ctx, rest)
	case "bookings":
		id, err := idArg(rest, "user id")
		if err != nil {
			return err
		}
		list, err := a.api.UserBookings(ctx, id)
		if err != nil {
			return err
		}
		a.printSlots(list)
		return nil
	case "book":
		return a.book(ctx, rest)
	case "cancel":
		return a.cancel(ctx, rest)
	case "health":
		h, err := a.api.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s %s\n", h.Status, h.Service)
		return nil
	case "prefs":
		return a.prefsCmd(ctx, rest)
	case "journal":
		return a.journalCmd(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "backup":
		return a.backup(ctx, rest)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func idArg(args []string, what string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: missing %s", errUsage, what)
	}
	id, err := cast.ToInt64E(args[0])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number, got %q", errUsage, what, args[0])
	}
	return id, nil
}

func subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseSub(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// invalid prints field messages for a rejected form.
func (a *app) invalid(form string, err error) error {
	var verr *validate.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	metrics.IncValidationFailure(form, verr.Fields)
	fields := make([]string, 0, len(verr.Fields))
	for field := range verr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(a.out, "%s: %s\n", field, verr.Fields[field])
	}
	return errFailed
}

func (a *app) users(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: users needs a subcommand", errUsage)
	}
	switch args[0] {
	case "create":
		if err := a.access.Require(ctx, a.profile, access.PermManageUsers); err != nil {
			return err
		}
		fs := subFlags("users create")
		var in models.NewUser
		fs.StringVar(&in.Name, "name", "", "")
		fs.StringVar(&in.Email, "email", "", "")
		fs.StringVar(&in.Phone, "phone", "", "")
		if err := parseSub(fs, args[1:]); err != nil {
			return err
		}
		if err := validate.ValidateUser(in); err != nil {
			return a.invalid("user", err)
		}
		u, err := a.api.CreateUser(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "created user %d\n", u.ID)
		return nil
	case "list":
		if err := a.access.Require(ctx, a.profile, access.PermManageUsers); err != nil {
			return err
		}
		list, err := a.api.ListUsers(ctx)
		if err != nil {
			return err
		}
		a.printUsers(list)
		return nil
	case "get":
		id, err := idArg(args[1:], "user id")
		if err != nil {
			return err
		}
		u, err := a.api.GetUser(ctx, id)
		if err != nil {
			return err
		}
		a.printUsers([]models.User{*u})
		return nil
	case "slots":
		id, err := idArg(args[1:], "user id")
		if err != nil {
			return err
		}
		list, err := a.api.UserSlots(ctx, id)
		if err != nil {
			return err
		}
		a.printSlots(list)
		return nil
	}
	return fmt.Errorf("%w: unknown users subcommand %q", errUsage, args[0])
}

func (a *app) slotsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: slots needs a subcommand", errUsage)
	}
	switch args[0] {
	case "create":
		return a.createSlot(ctx, args[1:])
	case "list":
		fs := subFlags("slots list")
		var f models.SlotFilter
		var available, booked bool
		fs.StringVar(&f.Date, "date", "", "")
		fs.Int64Var(&f.UserID, "user", 0, "")
		fs.BoolVar(&available, "available", false, "")
		fs.BoolVar(&booked, "booked", false, "")
		if err := parseSub(fs, args[1:]); err != nil {
			return err
		}
		if available && booked {
			return fmt.Errorf("%w: -available and -booked are exclusive", errUsage)
		}
		if available || booked {
			f.IsBooked = models.BoolPtr(booked)
		}
		list, err := a.slots.Refresh(ctx, f)
		if err != nil {
			return err
		}
		a.printSlots(list)
		return nil
	case "get":
		id, err := idArg(args[1:], "slot id")
		if err != nil {
			return err
		}
		s, err := a.api.GetSlot(ctx, id)
		if err != nil {
			return err
		}
		a.printSlots([]models.Slot{*s})
		return nil
	case "update":
		return a.updateSlot(ctx, args[1:])
	case "delete":
		if err := a.access.Require(ctx, a.profile, access.PermCreateSlots); err != nil {
			return err
		}
		id, err := idArg(args[1:], "slot id")
		if err != nil {
			return err
		}
		if err := a.api.DeleteSlot(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted slot %d\n", id)
		return nil
	}
	return fmt.Errorf("%w: unknown slots subcommand %q", errUsage, args[0])
}

func (a *app) createSlot(ctx context.Context, args []string) error {
	if err := a.access.Require(ctx, a.profile, access.PermCreateSlots); err != nil {
		return err
	}
	fs := subFlags("slots create")
	var in models.NewSlot
	var description string
	var owner int64
	fs.StringVar(&in.Title, "title", "", "")
	fs.StringVar(&description, "description", "", "")
	fs.StringVar(&in.Date, "date", "", "")
	fs.StringVar(&in.StartTime, "start", "", "")
	fs.StringVar(&in.EndTime, "end", "", "")
	fs.Int64Var(&owner, "user", 0, "")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	in.Description = models.StringPtr(description)
	in.UserID = models.Int64Ptr(owner)

	if err := validate.ValidateSlot(in); err != nil {
		return a.invalid("slot", err)
	}
	s, err := a.api.CreateSlot(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created slot %d\n", s.ID)
	return nil
}

func (a *app) updateSlot(ctx context.Context, args []string) error {
	if err := a.access.Require(ctx, a.profile, access.PermCreateSlots); err != nil {
		return err
	}
	id, err := idArg(args, "slot id")
	if err != nil {
		return err
	}
	fs := subFlags("slots update")
	var title, description, date, start, end string
	fs.StringVar(&title, "title", "", "")
	fs.StringVar(&description, "description", "", "")
	fs.StringVar(&date, "date", "", "")
	fs.StringVar(&start, "start", "", "")
	fs.StringVar(&end, "end", "", "")
	if err := parseSub(fs, args[1:]); err != nil {
		return err
	}

	u := models.SlotUpdate{
		Title:       models.StringPtr(title),
		Description: models.StringPtr(description),
		Date:        models.StringPtr(date),
		StartTime:   models.StringPtr(start),
		EndTime:     models.StringPtr(end),
	}
	if u.Empty() {
		return fmt.Errorf("%w: nothing to update", errUsage)
	}
	current, err := a.api.GetSlot(ctx, id)
	if err != nil {
		return err
	}
	if err := validate.ValidateSlotUpdate(*current, u); err != nil {
		return a.invalid("slot", err)
	}
	s, err := a.api.UpdateSlot(ctx, id, u)
	if err != nil {
		return err
	}
	a.printSlots([]models.Slot{*s})
	return nil
}

func (a *app) book(ctx context.Context, args []string) error {
	slotID, err := idArg(args, "slot id")
	if err != nil {
		return err
	}
	userID, err := idArg(args[1:], "user id")
	if err != nil {
		return err
	}
	if _, err := a.slots.Refresh(ctx, models.SlotFilter{}); err != nil {
		return err
	}
	res := a.slots.Book(ctx, slotID, userID)
	if !res.OK() {
		fmt.Fprintln(a.out, "Failed to book slot: "+res.Reason())
		return errFailed
	}
	fmt.Fprintln(a.out, "Slot booked successfully!")
	return nil
}

func (a *app) cancel(ctx context.Context, args []string) error {
	slotID, err := idArg(args, "slot id")
	if err != nil {
		return err
	}
	if _, err := a.slots.Refresh(ctx, models.SlotFilter{}); err != nil {
		return err
	}
	res := a.slots.Cancel(ctx, slotID)
	if !res.OK() {
		fmt.Fprintln(a.out, "Failed to cancel booking: "+res.Reason())
		return errFailed
	}
	fmt.Fprintln(a.out, "Booking cancelled successfully!")
	return nil
}

func (a *app) prefsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: prefs needs a subcommand", errUsage)
	}
	var (
		p   models.Preferences
		err error
	)
	switch args[0] {
	case "show":
		p, err = a.prefs.Load(ctx, a.profile)
	case "theme":
		if len(args) > 1 {
			theme, ok := models.ParseTheme(args[1])
			if !ok {
				return fmt.Errorf("%w: theme must be light or dark", errUsage)
			}
			p, err = a.prefs.SetTheme(ctx, a.profile, theme)
		} else {
			p, err = a.prefs.ToggleTheme(ctx, a.profile)
		}
	case "role":
		if len(args) < 2 {
			return fmt.Errorf("%w: prefs role needs guest or master", errUsage)
		}
		role, ok := models.ParseRole(args[1])
		if !ok {
			return fmt.Errorf("%w: role must be guest or master", errUsage)
		}
		if role == models.RoleMaster && !a.access.CanBecomeMaster(a.profile) {
			return fmt.Errorf("profile %s may not act as master", a.profile)
		}
		p, err = a.prefs.Complete(ctx, a.profile, role)
	default:
		return fmt.Errorf("%w: unknown prefs subcommand %q", errUsage, args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "profile=%s theme=%s role=%s visited=%t\n", p.Profile, p.Theme, p.Role, p.Visited)
	return nil
}

func (a *app) journalCmd(ctx context.Context, args []string) error {
	if a.db == nil {
		return errors.New("journal is not available with -ephemeral")
	}
	fs := subFlags("journal")
	limit := fs.Int("limit", 20, "")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	entries, err := a.db.RecentJournal(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSLOT\tUSER\tACTION\tOUTCOME\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.SlotID, e.UserID, e.Action, e.Outcome, e.Reason)
	}
	return tw.Flush()
}

func (a *app) backup(ctx context.Context, args []string) error {
	if a.db == nil {
		return errors.New("backup is not available with -ephemeral")
	}
	fs := subFlags("backup")
	keep := fs.Int("keep-days", 0, "")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: backup needs a directory", errUsage)
	}
	dir := fs.Arg(0)

	now := time.Now()
	path, err := a.db.Backup(ctx, dir, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s\n", path)

	n, err := a.db.PruneBackups(dir, *keep, now)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(a.out, "removed %d old backups\n", n)
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	if err := a.access.Require(ctx, a.profile, access.PermExport); err != nil {
		return err
	}
	src := report.Sources{Slots: a.slots, Users: a.api}
	if a.db != nil {
		src.Journal = a.db
	}
	in, err := report.Gather(a.logger.WithContext(ctx), src, time.Now())
	if err != nil {
		return err
	}
	path := report.Filename(in.Now)
	if len(args) > 0 {
		path = args[0]
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(f, in); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s (%d slots, %d users)\n", path, len(in.Slots), len(in.Users))
	return nil
}

func (a *app) printUsers(list []models.User) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Phone)
	}
	_ = tw.Flush()
}

func (a *app) printSlots(list []models.Slot) {
	now := time.Now()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDATE\tTIME\tSTATUS\tDAY\tBOOKED BY")
	for _, s := range list {
		status, by := "available", ""
		if s.IsBooked {
			status, by = "booked", cast.ToString(s.BookedBy())
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s-%s\t%s\t%s\t%s\n", s.ID, s.Title, s.Date, s.StartTime, s.EndTime, status, s.Status(now), by)
	}
	_ = tw.Flush()
}
