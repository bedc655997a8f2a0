package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// 24-hour clock with a mandatory colon, e.g. 09:30
var time24 = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func IsTime24(s string) bool {
	return time24.MatchString(s)
}

func IsDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// Register adds the hhmm and bookingdate tags to the validator gin binds with
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return IsTime24(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("bookingdate", func(fl validator.FieldLevel) bool {
		return IsDate(fl.Field().String())
	})
}

// Message turns binding errors into a single client facing sentence
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "hhmm":
		return fmt.Sprintf("%s must be a 24-hour time in HH:MM format", field)
	case "bookingdate":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
