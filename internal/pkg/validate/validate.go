package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom tags registered on the package validator.
const (
	TagEmail = "otp_email"
	TagCode  = "otp_code"
)

var (
	// local@domain.tld with no whitespace and a single @.
	reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	reCode  = regexp.MustCompile(`^\d{6}$`)
)

// v is the package-level singleton validator. Custom tags are registered in
// init before the first call to Struct.
var v = validator.New()

func init() {
	mustRegister(TagEmail, reEmail)
	mustRegister(TagCode, reCode)
}

func mustRegister(tag string, re *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Email reports whether s has the local@domain.tld shape.
func Email(s string) bool { return reEmail.MatchString(s) }

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return &Failure{Field: ve[0].Field(), Tag: ve[0].Tag(), msg: strings.Join(msgs, "; ")}
	}
	return nil
}

// Failure describes the first rule a struct broke, keeping the full message.
type Failure struct {
	Field string
	Tag   string
	msg   string
}

func (f *Failure) Error() string { return f.msg }

// FirstFailure extracts the first failing field and tag from an error returned by Struct.
func FirstFailure(err error) (field, tag string, ok bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Field, f.Tag, true
	}
	return "", "", false
}

// Var validates a single value against tag.
func Var(field interface{}, tag string) error {
	return v.Var(field, tag)
}
