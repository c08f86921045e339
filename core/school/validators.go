package school

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

func InitValidators(validate *validator.Validate, _ ut.Translator) {
	validate.RegisterStructValidation(schoolStructValidation, NewSchool{})
}

func schoolStructValidation(sl validator.StructLevel) {
	if ns, ok := sl.Current().Interface().(NewSchool); ok && ns.Password != "" {
		core.ReportPassword(sl, ns.Password, ns.Name, ns.SchoolName, ns.Email)
	}
}
