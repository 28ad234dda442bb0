package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMatchesInvalid(t *testing.T) {
	err := fmt.Errorf("register: %w", Fields(
		FieldError{Field: "email", Message: "invalid email"},
		FieldError{Field: "username", Message: "length must be greater than 2"},
	))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("errors.Is(%v, ErrInvalid) = false", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("errors.As(%v, *ValidationError) = false", err)
	}
	if len(ve.Fields) != 2 || ve.Fields[0].Field != "email" {
		t.Errorf("fields = %+v", ve.Fields)
	}
	want := "invalid input: email: invalid email; username: length must be greater than 2"
	if ve.Error() != want {
		t.Errorf("Error() = %q, want %q", ve.Error(), want)
	}
}

func TestFieldsEmptyIsNil(t *testing.T) {
	if err := Fields(); err != nil {
		t.Errorf("Fields() = %v, want nil", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"conflict", ErrConflict, true},
		{"wrapped conflict", fmt.Errorf("cast vote: %w", ErrConflict), true},
		{"not found", ErrNotFound, false},
		{"infrastructure", ErrInfrastructure, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
