package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"
)

// UUIDv4Regex validates lowercase UUIDv4 format
var UUIDv4Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

var (
	usernamePattern  = regexp.MustCompile(`^[\w.-]+$`)
	eventSlugPattern = regexp.MustCompile(`^[\w-]+$`)
	githubPattern    = regexp.MustCompile(`^[A-Za-z0-9-]{1,39}$`)
)

// DateLayout is the storage format for calendar dates.
const DateLayout = "2006-01-02"

// ValidateUUID validates a UUID v4 format (lowercase with hyphens)
func ValidateUUID(uuid string) error {
	if !UUIDv4Regex.MatchString(uuid) {
		return fmt.Errorf("invalid UUID: must be lowercase UUIDv4 format (e.g., 550e8400-e29b-41d4-a716-446655440000)")
	}
	return nil
}

// ValidateActorRole validates an actor role
func ValidateActorRole(role string) error {
	switch role {
	case "human", "agent", "system":
		return nil
	default:
		return fmt.Errorf("invalid actor role: must be one of: human, agent, system")
	}
}

// ValidateUsername validates a person's username (letters, digits, _ . -)
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(username) > 100 {
		return fmt.Errorf("username exceeds maximum length of 100 characters")
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("invalid username %q: only letters, digits, '_', '.' and '-' are allowed", username)
	}
	return nil
}

// ValidateEventSlug validates an event slug such as 2024-05-01-helsinki
func ValidateEventSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug cannot be empty")
	}
	if !eventSlugPattern.MatchString(slug) {
		return fmt.Errorf("invalid slug %q: only letters, digits, '_' and '-' are allowed", slug)
	}
	return nil
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address: %q", email)
	}
	return nil
}

// ValidateGitHub validates a GitHub handle
func ValidateGitHub(handle string) error {
	if !githubPattern.MatchString(handle) || strings.HasPrefix(handle, "-") {
		return fmt.Errorf("invalid GitHub handle: %q", handle)
	}
	return nil
}

// ValidateGender validates a gender code
func ValidateGender(gender string) error {
	switch Gender(gender) {
	case GenderUndisclosed, GenderMale, GenderFemale, GenderOther:
		return nil
	default:
		return fmt.Errorf("invalid gender: must be one of: U, M, F, O")
	}
}

// ValidateRequestState validates a training request state
func ValidateRequestState(state string) error {
	switch RequestState(state) {
	case RequestStatePending, RequestStateAccepted, RequestStateDiscard:
		return nil
	default:
		return fmt.Errorf("invalid request state: must be one of: p, a, d")
	}
}

// ValidateInvoiceStatus validates an event invoice status
func ValidateInvoiceStatus(status string) error {
	if !slices.Contains(InvoiceStatuses, status) {
		return fmt.Errorf("invalid invoice status: must be one of: %s", strings.Join(InvoiceStatuses, ", "))
	}
	return nil
}

// ValidateDate validates a YYYY-MM-DD calendar date
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return nil
}

// ValidateDateRange checks that start is not after end when both are set
func ValidateDateRange(start, end *string) error {
	if start == nil || end == nil {
		return nil
	}
	s, err := time.Parse(DateLayout, *start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: expected YYYY-MM-DD", *start)
	}
	e, err := time.Parse(DateLayout, *end)
	if err != nil {
		return fmt.Errorf("invalid end date %q: expected YYYY-MM-DD", *end)
	}
	if e.Before(s) {
		return fmt.Errorf("end date %s is before start date %s", *end, *start)
	}
	return nil
}

// ValidateResourceType validates an event log resource type
func ValidateResourceType(resourceType string) error {
	switch resourceType {
	case "person", "event", "training_request", "task", "award", "qualification",
		"training_progress", "todo_item", "actor", "system":
		return nil
	default:
		return fmt.Errorf("invalid resource type: %q", resourceType)
	}
}

// CheckETag validates an etag against the current value
func CheckETag(expected, actual int64) error {
	if expected != actual {
		return &ETagMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

var actorSlugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NormalizeSlug lower-cases s, maps spaces and underscores to hyphens and
// drops anything outside [a-z0-9-]. Used for actor slugs.
func NormalizeSlug(s string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == ' ' || r == '_':
			b.WriteRune('-')
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "", fmt.Errorf("slug %q has no usable characters", s)
	}
	if len(out) > 255 {
		return "", fmt.Errorf("slug exceeds maximum length of 255 bytes")
	}
	if !actorSlugPattern.MatchString(out) {
		return "", fmt.Errorf("invalid slug format: %s", out)
	}
	return out, nil
}
