package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// PlaygroundV10 Validator implementation using go-playground
type PlaygroundV10 struct {
	core  *validator.Validate
	trans ut.Translator
}

var _ Validator = &PlaygroundV10{}

// NewValidator create a new Validator, messages are translated into locale ("en" or "zh")
func NewValidator(locale string) *PlaygroundV10 {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())
	trans, found := uni.GetTranslator(locale)
	if !found {
		trans, _ = uni.GetTranslator("en")
	}

	validate := validator.New()
	switch trans.Locale() {
	case "zh":
		zh_translations.RegisterDefaultTranslations(validate, trans)
	default:
		en_translations.RegisterDefaultTranslations(validate, trans)
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	return &PlaygroundV10{
		core:  validate,
		trans: trans,
	}
}

// Struct validate struct
func (v *PlaygroundV10) Struct(s interface{}) []*FieldError {
	err := v.core.Struct(s)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*FieldError{NewFieldError("", err.Error())}
	}
	result := make([]*FieldError, 0, len(errs))
	for _, item := range errs {
		result = append(result, NewFieldError(item.Namespace(), item.Translate(v.trans)))
	}
	return result
}

// Var validate a single named value
func (v *PlaygroundV10) Var(name string, value interface{}, tag string) []*FieldError {
	err := v.core.Var(value, tag)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*FieldError{NewFieldError(name, err.Error())}
	}
	result := make([]*FieldError, 0, len(errs))
	for _, item := range errs {
		// fields of a bare value carry no name, the translation starts with it
		result = append(result, NewFieldError(name, name+strings.TrimPrefix(item.Translate(v.trans), item.Field())))
	}
	return result
}
