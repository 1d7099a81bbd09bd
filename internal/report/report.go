// Package report exports slot lists to xlsx.
package report

import (
	"fmt"
	"io"
	"time"

	"schedulink/internal/models"
)

var (
	slotColumns    = []string{"ID", "Title", "Description", "Date", "Start", "End", "Assigned to", "Status", "Day", "Booked by"}
	userColumns    = []string{"ID", "Name", "Email", "Phone"}
	journalColumns = []string{"Time", "Slot", "User", "Action", "Outcome", "Reason"}
)

// Input is everything a report can contain. Journal is optional.
type Input struct {
	Slots   []models.Slot
	Users   []models.User
	Journal []models.JournalEntry
	Now     time.Time
}

// Filename returns the attachment name for a report made at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("slots_%s.xlsx", now.Format(models.DateLayout))
}

// Write renders the workbook to w.
func Write(w io.Writer, in Input) error {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	names := make(map[int64]string, len(in.Users))
	for _, u := range in.Users {
		names[u.ID] = u.Name
	}
	userLabel := func(id *int64) string {
		if id == nil {
			return ""
		}
		if n, ok := names[*id]; ok {
			return fmt.Sprintf("%s (#%d)", n, *id)
		}
		return fmt.Sprintf("#%d", *id)
	}

	sw := newSheetWriter()
	defer sw.close()

	if err := sw.addSheet("Slots"); err != nil {
		return err
	}
	if err := sw.writeHeader(slotColumns); err != nil {
		return err
	}
	for _, s := range in.Slots {
		status := "Available"
		if s.IsBooked {
			status = "Booked"
		}
		err := sw.writeRow([]interface{}{
			s.ID, s.Title, s.DescriptionText(), s.Date, s.StartTime, s.EndTime,
			userLabel(s.UserID), status, string(s.Status(in.Now)), userLabel(s.BookedByUserID),
		})
		if err != nil {
			return fmt.Errorf("write slot %d: %w", s.ID, err)
		}
	}

	if err := sw.addSheet("Users"); err != nil {
		return err
	}
	if err := sw.writeHeader(userColumns); err != nil {
		return err
	}
	for _, u := range in.Users {
		if err := sw.writeRow([]interface{}{u.ID, u.Name, u.Email, u.Phone}); err != nil {
			return fmt.Errorf("write user %d: %w", u.ID, err)
		}
	}

	if len(in.Journal) > 0 {
		if err := sw.addSheet("Journal"); err != nil {
			return err
		}
		if err := sw.writeHeader(journalColumns); err != nil {
			return err
		}
		for _, e := range in.Journal {
			row := []interface{}{e.CreatedAt.Format(time.RFC3339), e.SlotID, e.UserID, e.Action, e.Outcome, e.Reason}
			if err := sw.writeRow(row); err != nil {
				return fmt.Errorf("write journal %d: %w", e.ID, err)
			}
		}
	}

	return sw.save(w)
}
