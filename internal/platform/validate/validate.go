// Package validate holds the process-wide struct validator with english messages
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Service bundles the validator singleton and its translator
type Service struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Service
)

// Get returns the validator singleton, initializing it on first use
func Get() *Service {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// report json names instead of Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		svc = &Service{Validator: v, Translator: trans}
	})
	return svc
}

// Struct validates v and returns the first failing field with a readable message
func Struct(v any) (field, message string, err error) {
	err = Get().Validator.Struct(v)
	if err == nil {
		return "", "", nil
	}

	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return "", inv.Error(), err
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Namespace(), verrs[0].Translate(Get().Translator), err
	}
	return "", err.Error(), err
}
