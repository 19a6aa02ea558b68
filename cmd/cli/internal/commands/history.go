package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/attendance/internal/history"
	"github.com/wolfeidau/attendance/internal/models"
)

type HistoryCmd struct {
	Limit int `help:"Maximum number of records to show (0 for all)." default:"20"`
}

func (c *HistoryCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals, "")
	if err != nil {
		return err
	}
	defer closeSession(s)

	h, err := s.History(ctx)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if h.Stale {
		fmt.Println("Server unreachable, showing saved history.")
	}
	printRecords(h, c.Limit, false)
	return nil
}

// printRecords writes records as a table. withEmployee adds the employee
// column used by the dashboard.
func printRecords(h *history.History, limit int, withEmployee bool) {
	if h.Len() == 0 {
		fmt.Println("No attendance records.")
		return
	}

	if withEmployee {
		fmt.Printf("%-10s %-12s ", "ID", "EMPLOYEE")
	} else {
		fmt.Printf("%-10s ", "ID")
	}
	fmt.Printf("%-10s %-8s %-8s %-8s %-8s %s\n", "DATE", "IN", "OUT", "WORKED", "STATUS", "LOCATION")

	n := 0
	for rec := range h.Records() {
		if limit > 0 && n == limit {
			break
		}
		n++

		if withEmployee {
			fmt.Printf("%-10s %-12s ", rec.ID, orDash(rec.EmployeeID))
		} else {
			fmt.Printf("%-10s ", rec.ID)
		}
		fmt.Printf("%-10s %-8s %-8s %-8s %-8s %s\n",
			rec.CalendarDate,
			clock(rec.ClockIn),
			clock(rec.ClockOut),
			worked(rec),
			rec.Status,
			orDash(rec.Location),
		)
	}

	if n < h.Len() {
		fmt.Printf("... %d more\n", h.Len()-n)
	}
}

func clock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("15:04")
}

func worked(rec models.Record) string {
	if rec.Duration == nil {
		if rec.IsOpen() {
			return "open"
		}
		return "-"
	}
	return models.FormatDuration(*rec.Duration)
}
