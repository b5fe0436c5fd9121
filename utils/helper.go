package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "US"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// FormatNationalPhone renders a 10 digit NANP number as "(ddd) ddd-dddd".
// Digits that libphonenumber cannot place in a national pattern are formatted by hand.
func FormatNationalPhone(digits string) string {
	if p, err := libphonenumber.Parse(digits, CountryCode); err == nil {
		if s := libphonenumber.Format(p, libphonenumber.NATIONAL); strings.HasPrefix(s, "(") {
			return s
		}
	}
	if len(digits) != 10 {
		return digits
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}
