package tuition

import (
	"sort"
	"strings"
	"time"
)

// ReportRow is one taken class of a Report.
type ReportRow struct {
	Seq      int
	Date     time.Time // effective class date
	Weekday  string
	LoggedAt time.Time
}

// Report is the printable summary of a Tuition's classes.
type Report struct {
	Tuition     Tuition
	Progress    int
	Rows        []ReportRow
	GeneratedAt time.Time
	FileName    string
}

// BuildReport lists the increment events of t in ascending class date order.
// Other event kinds are ignored.
func BuildReport(t Tuition, events []ClassEvent, now time.Time) Report {
	incs := make([]ClassEvent, 0, len(events))
	for _, ev := range events {
		if ev.ActionType == ActionIncrement {
			incs = append(incs, ev)
		}
	}
	sort.SliceStable(incs, func(i, j int) bool {
		return incs[i].EffectiveDate().Before(incs[j].EffectiveDate())
	})

	rows := make([]ReportRow, len(incs))
	for i, ev := range incs {
		date := ev.EffectiveDate()
		rows[i] = ReportRow{
			Seq:      i + 1,
			Date:     date,
			Weekday:  date.Weekday().String(),
			LoggedAt: ev.Date,
		}
	}

	return Report{
		Tuition:     t,
		Progress:    t.Progress(),
		Rows:        rows,
		GeneratedAt: now,
		FileName:    ReportFileName(t),
	}
}

// ReportFileName is "{subject}_{studentName}_{month}.pdf" with spaces replaced by underscores.
// month falls back to "report" when CurrentMonthYear is unset.
func ReportFileName(t Tuition) string {
	month := t.CurrentMonthYear
	if month == "" {
		month = "report"
	}
	name := t.Subject + "_" + t.StudentName + "_" + month + ".pdf"
	return strings.ReplaceAll(name, " ", "_")
}
