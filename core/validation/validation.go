// Package validation builds the validator shared by every service of the app.
package validation

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/ledger"
	"github.com/trezcool/darasa/core/school"
)

// New returns a validator with every custom tag & translation registered,
// along with the translator its messages are registered on.
func New() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	academic.InitValidators(validate, translator)
	ledger.InitValidators(validate, translator)
	return validate, translator
}
