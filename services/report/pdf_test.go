package reportsvc

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuitionbook/core/tuition"
)

func buildReport(classes int) tuition.Report {
	start := time.Date(2024, time.May, 1, 17, 0, 0, 0, time.UTC)
	tu := tuition.Tuition{
		ID:                     "t1",
		TeacherName:            "Mrs Teacher",
		StudentName:            "Kid Student",
		Subject:                "Maths",
		StartTime:              "16:00",
		EndTime:                "17:00",
		DaysPerWeek:            2,
		PlannedClassesPerMonth: 8,
		CurrentMonthYear:       "2024-05",
		TakenClasses:           classes,
	}
	evs := make([]tuition.ClassEvent, 0, classes)
	for i := 0; i < classes; i++ {
		evs = append(evs, tuition.ClassEvent{ActionType: tuition.ActionIncrement, Date: start.Add(time.Duration(i) * 24 * time.Hour)})
	}
	return tuition.BuildReport(tu, evs, start.Add(90*24*time.Hour))
}

func pageCount(pdf []byte) int {
	return strings.Count(string(pdf), "<</Type /Page\n")
}

func TestPDFRenderer_Render(t *testing.T) {
	r := NewPDFRenderer("Tuitionbook")

	tests := []struct {
		name      string
		classes   int
		wantPages func(n int) bool
	}{
		{name: "no classes", classes: 0, wantPages: func(n int) bool { return n == 1 }},
		{name: "one page", classes: 5, wantPages: func(n int) bool { return n == 1 }},
		{name: "overflows", classes: 80, wantPages: func(n int) bool { return n > 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, buildReport(tt.classes)))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
			n := pageCount(buf.Bytes())
			assert.True(t, tt.wantPages(n), "unexpected page count %d", n)
		})
	}
}
