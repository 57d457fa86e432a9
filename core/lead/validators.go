package lead

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
)

var (
	stageTag  = "lead_stage"
	stageText = "invalid lead stage"
)

// RegisterValidators registers the lead validation tags on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(stageTag, stageValidation)
	core.RegisterCustomTranslation(validate, translator, stageTag, stageText)
}

// stageValidation checks that the provided value is one of AllStages
func stageValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Stage:
		return v.IsValid()
	case string:
		return Stage(v).IsValid()
	}
	return false
}
