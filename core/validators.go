package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/ar"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "يجب أن يحتوي حقل {0} على أحرف وأرقام وشرطات سفلية فقط."
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	arabicNameTag   = "arabic_name"
	arabicNameText  = "يجب أن يحتوي حقل {0} على حروف عربية أو لاتينية فقط."
	arabicNameRegex = regexp.MustCompile(`^[\p{Arabic}\p{Latin}\s'.-]+$`)
)

// NewTranslator returns the Arabic translator holding every validation message.
func NewTranslator() ut.Translator {
	_ar := ar.New()
	uni := ut.New(_ar, _ar)
	translator, _ := uni.GetTranslator(_ar.Locale())
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(arabicNameTag, arabicNameValidation)
	RegisterCustomTranslation(validate, translator, arabicNameTag, arabicNameText)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// arabicNameValidation allows Arabic and Latin letters, spaces and name punctuation.
func arabicNameValidation(fl validator.FieldLevel) bool {
	return arabicNameRegex.MatchString(fl.Field().String())
}
