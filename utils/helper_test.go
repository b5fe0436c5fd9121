package utils

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestFormatNationalPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2125551234", "(212) 555-1234"},
		{"4155550198", "(415) 555-0198"},
		{"123", "123"},
	}
	for _, tc := range cases {
		if got := FormatNationalPhone(tc.in); got != tc.want {
			t.Fatalf("FormatNationalPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("abcde@example.com") {
		t.Fatalf("expected valid email")
	}
	if IsValidEmail("not-an-email") {
		t.Fatalf("expected invalid email")
	}
}

func TestProcessValidationErrors(t *testing.T) {
	type input struct {
		Topic string `validate:"required"`
	}
	err := validator.New().Struct(input{})
	got := ProcessValidationErrors(err)
	if got["Topic"] != "required" {
		t.Fatalf("ProcessValidationErrors = %v, want Topic=required", got)
	}
	if got := ProcessValidationErrors(errors.New("plain")); len(got) != 0 {
		t.Fatalf("non-validation error should yield empty map, got %v", got)
	}
}
