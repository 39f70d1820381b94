package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestPerson_FullName(t *testing.T) {
	tests := []struct {
		name   string
		person Person
		want   string
	}{
		{name: "personal and family", person: Person{Personal: "Harry", Family: "Potter"}, want: "Harry Potter"},
		{name: "with middle", person: Person{Personal: "Harry", Middle: "James", Family: "Potter"}, want: "Harry James Potter"},
		{name: "personal only", person: Person{Personal: "Hedwig"}, want: "Hedwig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.person.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotFoundErrorIs(t *testing.T) {
	err := fmt.Errorf("resolve: %w", &NotFoundError{Kind: "person", Ref: "P-00009"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected wrapped NotFoundError to match ErrNotFound")
	}
	if got := err.Error(); got != "resolve: person not found: P-00009" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(&ValidationError{Field: "email", Message: "bad"}) {
		t.Error("expected ValidationError to be recognised")
	}
	if !IsValidation(fmt.Errorf("wrap: %w", ValidationErrors{{Message: "a"}, {Field: "b", Message: "c"}})) {
		t.Error("expected wrapped ValidationErrors to be recognised")
	}
	if IsValidation(errors.New("plain")) {
		t.Error("plain error must not be a validation error")
	}

	got := ValidationErrors{{Message: "a"}, {Field: "b", Message: "c"}}.Error()
	if got != "validation failed: a; b: c" {
		t.Errorf("unexpected message %q", got)
	}
}
