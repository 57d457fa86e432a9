package application

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
)

var (
	statusTag  = "app_status"
	statusText = "invalid application status"
)

// RegisterValidators registers the application validation tags on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Status:
		return v.IsValid()
	case string:
		return Status(v).IsValid()
	}
	return false
}
