// Package validation is the last structural gate before a draft is persisted.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/models"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// StaleWindow is how far in the past an event date may be.
const StaleWindow = 24 * time.Hour

// ErrInvalidDraft wraps every rejection.
var ErrInvalidDraft = errors.New("invalid event draft")

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
}

// Error is returned by Validate when any rule fails.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDraft, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	return ErrInvalidDraft
}

// Validator applies the draft rules regardless of which strategy produced it.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
	now      func() time.Time
}

// New builds a validator. now may be nil.
func New(now func() time.Time) (*Validator, error) {
	if now == nil {
		now = time.Now
	}

	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ := uni.GetTranslator("en")

	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    trans,
		now:      now,
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag == "-" || tag == "" {
			return fld.Name
		}
		return tag
	})

	if err := en_translations.RegisterDefaultTranslations(v.validate, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}
	if err := v.register("notstale", v.notStale, "{0} is more than 24h in the past"); err != nil {
		return nil, err
	}
	if err := v.register("category", validCategory, "{0} is not a known category"); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Validator) register(tag string, fn validator.Func, message string) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("register %s: %w", tag, err)
	}
	return v.validate.RegisterTranslation(tag, v.trans,
		func(t ut.Translator) error { return t.Add(tag, message, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		})
}

// Validate rejects drafts with a short title or description, no location,
// an unknown category, or a date more than 24h in the past.
func (v *Validator) Validate(draft *models.EventDraft) error {
	if draft == nil {
		return &Error{Fields: []FieldError{{Field: "draft", Message: "draft is nil"}}}
	}

	err := v.validate.Struct(draft)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate draft: %w", err)
	}

	out := &Error{}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: fe.Translate(v.trans)})
	}
	return out
}

func (v *Validator) notStale(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(time.Time)
	if !ok || date.IsZero() {
		return false
	}
	return !date.Before(v.now().Add(-StaleWindow))
}

func validCategory(fl validator.FieldLevel) bool {
	category, ok := fl.Field().Interface().(models.Category)
	return ok && category.IsValid()
}
