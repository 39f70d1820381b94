package domain

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "simple", username: "hpotter", wantErr: false},
		{name: "with underscore", username: "potter_harry", wantErr: false},
		{name: "with dot and dash", username: "h.potter-1", wantErr: false},
		{name: "empty", username: "", wantErr: true},
		{name: "space", username: "harry potter", wantErr: true},
		{name: "at sign", username: "harry@hogwarts", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr && err == nil {
				t.Error("ValidateUsername() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateUsername() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateEventSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{name: "dated slug", slug: "2024-05-01-helsinki", wantErr: false},
		{name: "underscore", slug: "ttt_online", wantErr: false},
		{name: "empty", slug: "", wantErr: true},
		{name: "slash", slug: "2024/helsinki", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEventSlug(tt.slug)
			if tt.wantErr && err == nil {
				t.Error("ValidateEventSlug() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateEventSlug() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("harry@hogwarts.edu"); err != nil {
		t.Errorf("ValidateEmail() unexpected error: %v", err)
	}
	for _, bad := range []string{"", "harry", "Harry <harry@hogwarts.edu>"} {
		if err := ValidateEmail(bad); err == nil {
			t.Errorf("ValidateEmail(%q) expected error, got nil", bad)
		}
	}
}

func TestValidateEnums(t *testing.T) {
	if err := ValidateGender("U"); err != nil {
		t.Errorf("ValidateGender() unexpected error: %v", err)
	}
	if err := ValidateGender("x"); err == nil {
		t.Error("ValidateGender() expected error, got nil")
	}
	if err := ValidateRequestState("a"); err != nil {
		t.Errorf("ValidateRequestState() unexpected error: %v", err)
	}
	if err := ValidateRequestState("accepted"); err == nil {
		t.Error("ValidateRequestState() expected error, got nil")
	}
	if err := ValidateInvoiceStatus("na-waiver"); err != nil {
		t.Errorf("ValidateInvoiceStatus() unexpected error: %v", err)
	}
	if err := ValidateInvoiceStatus("paid"); err == nil {
		t.Error("ValidateInvoiceStatus() expected error, got nil")
	}
}

func TestValidateDateRange(t *testing.T) {
	tests := []struct {
		name    string
		start   *string
		end     *string
		wantErr bool
	}{
		{name: "both nil", wantErr: false},
		{name: "open ended", start: strPtr("2024-05-01"), wantErr: false},
		{name: "ordered", start: strPtr("2024-05-01"), end: strPtr("2024-05-02"), wantErr: false},
		{name: "same day", start: strPtr("2024-05-01"), end: strPtr("2024-05-01"), wantErr: false},
		{name: "reversed", start: strPtr("2024-05-02"), end: strPtr("2024-05-01"), wantErr: true},
		{name: "bad format", start: strPtr("05/01/2024"), end: strPtr("2024-05-01"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDateRange(tt.start, tt.end)
			if tt.wantErr && err == nil {
				t.Error("ValidateDateRange() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateDateRange() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID("550e8400-e29b-41d4-a716-446655440000"); err != nil {
		t.Errorf("ValidateUUID() unexpected error: %v", err)
	}
	if err := ValidateUUID("550E8400-E29B-41D4-A716-446655440000"); err == nil {
		t.Error("ValidateUUID() expected error for uppercase, got nil")
	}
}

func TestCheckETag(t *testing.T) {
	tests := []struct {
		name     string
		expected int64
		actual   int64
		wantErr  bool
	}{
		{name: "matching etags", expected: 123, actual: 123, wantErr: false},
		{name: "different etags", expected: 123, actual: 456, wantErr: true},
		{name: "zero vs non-zero", expected: 0, actual: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckETag(tt.expected, tt.actual)
			if tt.wantErr {
				if err == nil {
					t.Error("CheckETag() expected error, got nil")
					return
				}
				var etagErr *ETagMismatchError
				if !errors.As(err, &etagErr) {
					t.Errorf("CheckETag() error type = %T, want *ETagMismatchError", err)
					return
				}
				if etagErr.Expected != tt.expected {
					t.Errorf("ETagMismatchError.Expected = %d, want %d", etagErr.Expected, tt.expected)
				}
				if etagErr.Actual != tt.actual {
					t.Errorf("ETagMismatchError.Actual = %d, want %d", etagErr.Actual, tt.actual)
				}
			} else if err != nil {
				t.Errorf("CheckETag() unexpected error: %v", err)
			}
		})
	}
}

func TestETagMismatchError(t *testing.T) {
	err := &ETagMismatchError{Expected: 123, Actual: 456}
	want := "etag mismatch: expected 123, got 456"
	if got := err.Error(); got != want {
		t.Errorf("ETagMismatchError.Error() = %q, want %q", got, want)
	}

	err.Resource = "P-00001"
	want = "etag mismatch on P-00001: expected 123, got 456"
	if got := err.Error(); got != want {
		t.Errorf("ETagMismatchError.Error() = %q, want %q", got, want)
	}
}

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Ops Team", want: "ops-team"},
		{in: "merge_bot", want: "merge-bot"},
		{in: "--admin!!", want: "admin"},
		{in: "!!!", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeSlug(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeSlug(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeSlug(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
