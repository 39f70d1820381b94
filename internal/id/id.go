package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	friendlyIDPattern = regexp.MustCompile(`^([A-Z]+)-(\d{5,})$`)
	uuidPattern       = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Type represents the type of resource
type Type string

const (
	TypeActor            Type = "actor"
	TypePerson           Type = "person"
	TypeEvent            Type = "event"
	TypeTrainingRequest  Type = "training_request"
	TypeTask             Type = "task"
	TypeAward            Type = "award"
	TypeQualification    Type = "qualification"
	TypeTrainingProgress Type = "training_progress"
	TypeTodoItem         Type = "todo_item"
	TypeInvoiceRequest   Type = "invoice_request"
)

var prefixes = map[string]Type{
	"A":   TypeActor,
	"P":   TypePerson,
	"E":   TypeEvent,
	"R":   TypeTrainingRequest,
	"T":   TypeTask,
	"AW":  TypeAward,
	"Q":   TypeQualification,
	"TP":  TypeTrainingProgress,
	"TD":  TypeTodoItem,
	"INV": TypeInvoiceRequest,
}

// Prefix returns the friendly-ID prefix for a resource type, e.g. "P-".
func Prefix(t Type) string {
	for p, pt := range prefixes {
		if pt == t {
			return p + "-"
		}
	}
	return ""
}

// Format formats a friendly ID for the given resource type
func Format(t Type, seq int) string {
	return fmt.Sprintf("%s%05d", Prefix(t), seq)
}

// FormatPerson formats a person friendly ID
func FormatPerson(seq int) string {
	return Format(TypePerson, seq)
}

// FormatEvent formats an event friendly ID
func FormatEvent(seq int) string {
	return Format(TypeEvent, seq)
}

// Parse parses an ID string and returns the type and sequence number
func Parse(s string) (Type, int, error) {
	s = strings.TrimSpace(s)

	m := friendlyIDPattern.FindStringSubmatch(s)
	if m == nil {
		return "", 0, fmt.Errorf("invalid friendly ID format: %s", s)
	}
	t, ok := prefixes[m[1]]
	if !ok {
		return "", 0, fmt.Errorf("unknown friendly ID prefix: %s", m[1])
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("invalid friendly ID sequence: %s", s)
	}
	return t, seq, nil
}

// IsUUID checks if a string is a valid UUID
func IsUUID(s string) bool {
	return uuidPattern.MatchString(strings.ToLower(s))
}

// IsFriendlyID checks if a string is a valid friendly ID
func IsFriendlyID(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}
