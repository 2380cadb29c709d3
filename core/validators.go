package core

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	requiredText = "this field is required"
	// tags whose failure reads as a missing field
	requiredTags = []string{"required", "required_without"}
)

// InitValidators registers the English translations, the JSON/form field naming and the shared tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)
	validate.RegisterTagNameFunc(fieldName)

	_ = validate.RegisterValidation(notBlankTag, validators.NotBlank)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	for _, tag := range requiredTags {
		RegisterCustomTranslation(validate, translator, tag, requiredText, true)
	}
}

// fieldName reports fields by their json name, falling back to the form name (multipart requests).
func fieldName(fld reflect.StructField) string {
	tag := fld.Tag.Get("json")
	if tag == "" {
		tag = fld.Tag.Get("form")
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}

// RegisterCustomTranslation registers a fixed message for tag; override replaces an existing one.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	ovrd := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// OneOfValidation returns a validator.Func accepting only (case-insensitive) members of allowed.
func OneOfValidation(allowed ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}
