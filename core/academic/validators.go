package academic

import (
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// InitValidators registers the academic struct validations. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, _ ut.Translator) {
	validate.RegisterStructValidation(passwordStructValidation, NewTeacher{}, NewStudent{}, UpdateStudent{})
}

// passwordStructValidation applies the password policy to new & updated credentials.
func passwordStructValidation(sl validator.StructLevel) {
	switch req := sl.Current().Interface().(type) {
	case NewTeacher:
		if req.Password != "" { // else: reported by `required`
			core.ReportPassword(sl, req.Password, req.Name, req.Email)
		}
	case NewStudent:
		if req.Password != "" {
			core.ReportPassword(sl, req.Password, req.Name, strconv.Itoa(req.RollNum))
		}
	case UpdateStudent:
		if req.Password != "" {
			core.ReportPassword(sl, req.Password, req.Name, strconv.Itoa(req.RollNum))
		}
	}
}
