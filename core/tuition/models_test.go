package tuition

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuitionbook/core"
)

func failedFields(err error) []string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil
	}
	flds := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		flds = append(flds, fe.Field())
	}
	return flds
}

func TestNewTuition_Validate(t *testing.T) {
	validate := core.NewValidator(core.NewTranslator())
	valid := NewTuition{
		StudentEmail:           " Kid@Test.com ",
		Subject:                " Maths ",
		StartTime:              "09:30",
		EndTime:                "23:59",
		DaysPerWeek:            7,
		PlannedClassesPerMonth: 31,
	}

	tests := []struct {
		name       string
		mutate     func(nt *NewTuition)
		wantFields []string
	}{
		{name: "valid", mutate: func(nt *NewTuition) {}},
		{name: "no student", mutate: func(nt *NewTuition) { nt.StudentEmail = "" }},
		{name: "bad email", mutate: func(nt *NewTuition) { nt.StudentEmail = "kid" }, wantFields: []string{"studentEmail"}},
		{name: "blank subject", mutate: func(nt *NewTuition) { nt.Subject = "   " }, wantFields: []string{"subject"}},
		{name: "bad times", mutate: func(nt *NewTuition) { nt.StartTime, nt.EndTime = "24:00", "9:30" }, wantFields: []string{"startTime", "endTime"}},
		{name: "days out of range", mutate: func(nt *NewTuition) { nt.DaysPerWeek = 8 }, wantFields: []string{"daysPerWeek"}},
		{name: "no days", mutate: func(nt *NewTuition) { nt.DaysPerWeek = 0 }, wantFields: []string{"daysPerWeek"}},
		{name: "planned out of range", mutate: func(nt *NewTuition) { nt.PlannedClassesPerMonth = 32 }, wantFields: []string{"plannedClassesPerMonth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt := valid
			tt.mutate(&nt)
			err := nt.Validate(validate)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}
			assert.ElementsMatch(t, tt.wantFields, failedFields(err))
		})
	}

	nt := valid
	require.NoError(t, nt.Validate(validate))
	assert.Equal(t, "kid@test.com", nt.StudentEmail)
	assert.Equal(t, "Maths", nt.Subject)
}

func TestUpdateClasses_Validate(t *testing.T) {
	validate := core.NewValidator(core.NewTranslator())

	tests := []struct {
		name          string
		uc            UpdateClasses
		wantErr       bool
		wantClassDate *time.Time
	}{
		{name: "no action", uc: UpdateClasses{}, wantErr: true},
		{name: "unknown action", uc: UpdateClasses{Action: "double"}, wantErr: true},
		{name: "increment", uc: UpdateClasses{Action: " Increment "}},
		{name: "decrement", uc: UpdateClasses{Action: "decrement"}},
		{name: "reset", uc: UpdateClasses{Action: "reset"}},
		{
			name:          "date only",
			uc:            UpdateClasses{Action: "increment", ClassDate: "2024-05-03"},
			wantClassDate: timePtr(time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:          "timestamp",
			uc:            UpdateClasses{Action: "increment", ClassDate: "2024-05-03T10:00:00+02:00"},
			wantClassDate: timePtr(time.Date(2024, time.May, 3, 8, 0, 0, 0, time.UTC)),
		},
		{name: "bad date", uc: UpdateClasses{Action: "increment", ClassDate: "yesterday"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := tt.uc
			err := uc.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantClassDate != nil {
				require.NotNil(t, uc.classDate)
				assert.True(t, tt.wantClassDate.Equal(*uc.classDate))
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
