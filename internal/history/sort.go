package history

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"github.com/wolfeidau/attendance/internal/models"
)

// SortPersonal orders an employee's own history: records with a clock-in
// first, then by descending effective time within each group.
func SortPersonal(records []models.Record, loc *time.Location) {
	slices.SortStableFunc(records, func(a, b models.Record) int {
		if c := groupFirst(a.ClockIn != nil, b.ClockIn != nil); c != 0 {
			return c
		}
		return newestFirst(a, b, loc)
	})
}

// SortDashboard orders the organisation-wide list: employees currently
// clocked in first, then by descending effective time.
func SortDashboard(records []models.Record, loc *time.Location) {
	slices.SortStableFunc(records, func(a, b models.Record) int {
		if c := groupFirst(a.IsOpen(), b.IsOpen()); c != 0 {
			return c
		}
		return newestFirst(a, b, loc)
	})
}

func groupFirst(a, b bool) int {
	switch {
	case a && !b:
		return -1
	case !a && b:
		return 1
	default:
		return 0
	}
}

func newestFirst(a, b models.Record, loc *time.Location) int {
	if c := b.EffectiveTime(loc).Compare(a.EffectiveTime(loc)); c != 0 {
		return c
	}
	return compareIDDesc(a.ID, b.ID)
}

// compareIDDesc orders numeric ids numerically and everything else
// lexically, highest first.
func compareIDDesc(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return cmp.Compare(bi, ai)
	}
	return cmp.Compare(b, a)
}
