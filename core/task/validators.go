package task

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/Beccio00/homeworks-web-app/core"
)

var (
	groupSizeTag  = "groupsize"
	groupSizeText = fmt.Sprintf("a group must have between %d and %d students", MinGroupSize, MaxGroupSize)
)

// InitValidators registers the task validators and their messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(groupSizeTag, groupSizeValidation)
	core.RegisterCustomTranslation(validate, translator, groupSizeTag, groupSizeText)
}

// groupSizeValidation checks the number of students of a group.
func groupSizeValidation(fl validator.FieldLevel) bool {
	n := fl.Field().Len()
	return n >= MinGroupSize && n <= MaxGroupSize
}
