package delivery

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/memoraid/memoraid/core"
)

var (
	frequencyTag  = "frequency"
	frequencyText = "invalid frequency"

	sendOffsetTag  = "send_offset"
	sendOffsetText = "invalid send time"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(frequencyTag, core.OneOfValidation(Frequencies...))
	core.RegisterCustomTranslation(validate, translator, frequencyTag, frequencyText)

	_ = validate.RegisterValidation(sendOffsetTag, core.OneOfValidation(Offsets...))
	core.RegisterCustomTranslation(validate, translator, sendOffsetTag, sendOffsetText)
}
