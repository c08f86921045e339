package ledger

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
)

// RecordAttendance marks a student (or teacher) present or absent on a calendar day.
// SubjectID is required for students and ignored for teachers. A zero Date means today.
type RecordAttendance struct {
	SubjectID string          `json:"subject_id"`
	Date      core.Date       `json:"date"`
	Status    academic.Status `json:"status" validate:"required,attendance_status"`
}

func (ra *RecordAttendance) Validate(validate *validator.Validate) error {
	ra.SubjectID = core.CleanString(ra.SubjectID)
	return validate.Struct(ra)
}

// RecordResult sets the marks obtained by a student in a subject's exam.
type RecordResult struct {
	SubjectID string  `json:"subject_id" validate:"required"`
	Marks     float64 `json:"marks" validate:"min=0"`
}

func (rr *RecordResult) Validate(validate *validator.Validate) error {
	rr.SubjectID = core.CleanString(rr.SubjectID)
	return validate.Struct(rr)
}
