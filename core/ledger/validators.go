package ledger

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
)

var (
	attendanceStatusTag  = "attendance_status"
	attendanceStatusText = "status must be either Present or Absent"
)

// InitValidators registers the ledger validation tags. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(attendanceStatusTag, attendanceStatusValidation)
	core.RegisterCustomTranslation(validate, translator, attendanceStatusTag, attendanceStatusText)
}

func attendanceStatusValidation(fl validator.FieldLevel) bool {
	switch academic.Status(fl.Field().String()) {
	case academic.StatusPresent, academic.StatusAbsent:
		return true
	}
	return false
}
