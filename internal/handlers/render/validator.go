package render

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9]+(?:\.[a-z0-9]+)*$`)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("password", validatePasswordStrength)
	_ = validate.RegisterValidation("username", validateUsername)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Password must be 8 to 35 characters long and contain at least one
// uppercase letter and at least one digit or special character
func validatePasswordStrength(fl validator.FieldLevel) bool {
	password := fl.Field().String()

	if len(password) < 8 || len(password) > 35 {
		return false
	}

	var hasUpper, hasDigitOrSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigitOrSpecial = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			hasDigitOrSpecial = true
		}
	}

	return hasUpper && hasDigitOrSpecial
}

// Username is a dotted slug: lowercase letters and digits separated by
// single dots, e.g. "john.doe1"
func validateUsername(fl validator.FieldLevel) bool {
	return usernameRe.MatchString(fl.Field().String())
}
