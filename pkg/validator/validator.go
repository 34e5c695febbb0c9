package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxTokenLength bounds opaque tokens accepted from clients (signed JWTs included).
const MaxTokenLength = 4096

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)

// FieldError describes one rejected field using its JSON name.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Message renders the failure for API clients.
func (f FieldError) Message() string {
	field := Humanize(f.Field)
	switch f.Tag {
	case "required", "notblank":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, f.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, f.Param)
	case "token":
		return field + " is malformed"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(f.Param, " ", ", "))
	}
	if f.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, f.Tag)
}

// FieldErrors is returned by Struct when one or more rules fail.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(e))
	for i, failure := range e {
		messages[i] = failure.Message()
	}
	return strings.Join(messages, "; ")
}

// Rule is a named custom validation.
type Rule struct {
	Tag string
	Fn  validator.Func
}

// Validator wraps go-playground/validator with JSON field naming and the
// request rules shared by every handler.
type Validator struct {
	engine *validator.Validate
}

// New builds a validator with the built-in rules plus any extras.
func New(rules ...Rule) (*Validator, error) {
	engine := validator.New(validator.WithRequiredStructEnabled())
	engine.RegisterTagNameFunc(jsonFieldName)

	builtin := []Rule{
		{Tag: "notblank", Fn: notBlank},
		{Tag: "token", Fn: opaqueToken},
	}
	for _, rule := range append(builtin, rules...) {
		if err := engine.RegisterValidation(rule.Tag, rule.Fn); err != nil {
			return nil, fmt.Errorf("register %q: %w", rule.Tag, err)
		}
	}
	return &Validator{engine: engine}, nil
}

// Struct validates s and converts rule failures into FieldErrors.
func (v *Validator) Struct(s any) error {
	err := v.engine.Struct(s)
	if err == nil {
		return nil
	}

	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return err
	}
	out := make(FieldErrors, 0, len(failures))
	for _, fe := range failures {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Register adds a custom rule after construction.
func (v *Validator) Register(rule Rule) error {
	return v.engine.RegisterValidation(rule.Tag, rule.Fn)
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default returns the process-wide validator used by the HTTP handlers.
func Default() *Validator {
	defaultOnce.Do(func() {
		v, err := New()
		if err != nil {
			panic(err)
		}
		defaultValidator = v
	})
	return defaultValidator
}

// ValidateStruct validates s with the default validator.
func ValidateStruct(s any) error {
	return Default().Struct(s)
}

// RegisterValidation adds a rule to the default validator.
func RegisterValidation(tag string, fn validator.Func) error {
	return Default().Register(Rule{Tag: tag, Fn: fn})
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(field.String()) != ""
}

func opaqueToken(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	return value != "" && len(value) <= MaxTokenLength && tokenPattern.MatchString(value)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// Humanize turns json names such as newPassword or job_id into "new password"
// and "job id".
func Humanize(name string) string {
	if name == "" {
		return "field"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_':
			b.WriteByte(' ')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
