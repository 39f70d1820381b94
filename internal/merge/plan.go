package merge

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lherron/amyq/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Side selects where a scalar field's final value comes from.
type Side string

const (
	SideBase     Side = "base"
	SideOther    Side = "other"
	SideCombine  Side = "combine"  // newline-joined text of both records
	SideOverride Side = "override" // ScalarChoice.Value
)

// ScalarChoice resolves one scalar field.
type ScalarChoice struct {
	Side  Side `json:"side" yaml:"side" validate:"required,oneof=base other combine override"`
	Value any  `json:"value,omitempty" yaml:"value,omitempty"`
}

// Strategy resolves one relation field.
type Strategy string

const (
	Union     Strategy = "union"
	BaseOnly  Strategy = "base-only"
	OtherOnly Strategy = "other-only"
)

// Plan is one merge request. Base survives, Other is deleted.
type Plan struct {
	Kind            string                  `json:"kind" yaml:"kind" validate:"required"`
	Base            string                  `json:"base" yaml:"base" validate:"required,uuid"`
	Other           string                  `json:"other" yaml:"other" validate:"required,uuid,nefield=Base"`
	ScalarChoices   map[string]ScalarChoice `json:"scalar_choices,omitempty" yaml:"scalar_choices,omitempty" validate:"dive,keys,required,endkeys"`
	RelationChoices map[string]Strategy     `json:"relation_choices,omitempty" yaml:"relation_choices,omitempty" validate:"dive,keys,required,endkeys,oneof=union base-only other-only"`
	BaseETag        int64                   `json:"base_etag,omitempty" yaml:"base_etag,omitempty" validate:"gte=0"`
	OtherETag       int64                   `json:"other_etag,omitempty" yaml:"other_etag,omitempty" validate:"gte=0"`
	DryRun          bool                    `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// Strategy returns the choice for relation, defaulting to Union.
func (p *Plan) Strategy(relation string) Strategy {
	if s, ok := p.RelationChoices[relation]; ok {
		return s
	}
	return Union
}

// Keys returns the lock keys of both records in acquisition order.
func (p *Plan) Keys() []string {
	keys := []string{p.Kind + ":" + p.Base, p.Kind + ":" + p.Other}
	slices.Sort(keys)
	return keys
}

// Validate checks the plan's shape. Field names and override values are
// checked against the kind's schema by check.
func (p *Plan) Validate() error {
	var out domain.ValidationErrors
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			out = append(out, &domain.ValidationError{
				Field:   planFieldName(fe.Namespace()),
				Message: describeTag(fe),
			})
		}
	}

	// The validator does not reach into map values, so sides are checked here.
	for _, name := range sortedKeys(p.ScalarChoices) {
		field := "scalar_choices[" + name + "].side"
		if slices.ContainsFunc(out, func(ve *domain.ValidationError) bool { return ve.Field == field }) {
			continue
		}
		if err := p.ScalarChoices[name].Side.validate(); err != nil {
			out = append(out, &domain.ValidationError{Field: field, Message: err.Error()})
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func (s Side) validate() error {
	switch s {
	case SideBase, SideOther, SideCombine, SideOverride:
		return nil
	case "":
		return errors.New("is required")
	}
	return fmt.Errorf("%s is not one of: base other combine override", s)
}

// planFieldName turns "Plan.ScalarChoices[email].Side" into
// "scalar_choices[email].side".
func planFieldName(ns string) string {
	ns = strings.TrimPrefix(ns, "Plan.")
	var b strings.Builder
	for i, r := range ns {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && ns[i-1] >= 'a' && ns[i-1] <= 'z' {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return fmt.Sprintf("%v is not a UUID", fe.Value())
	case "nefield":
		return "base and other must be different records"
	case "oneof":
		return fmt.Sprintf("%v is not one of: %s", fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// check validates field and relation names against schema and returns the
// override values coerced to their field types.
func (p *Plan) check(schema *Schema) (map[string]any, error) {
	var errs domain.ValidationErrors
	overrides := map[string]any{}

	for _, name := range sortedKeys(p.ScalarChoices) {
		choice := p.ScalarChoices[name]
		key := "scalar_choices." + name
		f, ok := schema.Field(name)
		if !ok {
			errs = append(errs, &domain.ValidationError{Field: key, Message: fmt.Sprintf("%s has no field %q", schema.Kind, name)})
			continue
		}
		switch choice.Side {
		case SideCombine:
			if !f.textual() {
				errs = append(errs, &domain.ValidationError{Field: key, Message: fmt.Sprintf("combine is only supported on text fields, %s is %s", name, f.Type)})
			}
		case SideOverride:
			v, err := coerce(f, choice.Value)
			if err != nil {
				errs = append(errs, &domain.ValidationError{Field: key, Message: err.Error()})
				continue
			}
			overrides[name] = v
		case SideBase, SideOther:
		default:
			errs = append(errs, &domain.ValidationError{Field: key, Message: fmt.Sprintf("unknown side %q", choice.Side)})
		}
	}
	for _, name := range sortedKeys(p.RelationChoices) {
		if _, ok := schema.Relation(name); !ok {
			errs = append(errs, &domain.ValidationError{Field: "relation_choices." + name, Message: fmt.Sprintf("%s has no relation %q", schema.Kind, name)})
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return overrides, nil
}

// coerce converts a caller-supplied override to the field's normalized type.
func coerce(f Field, v any) (any, error) {
	if v == nil {
		if !f.Nullable {
			return nil, fmt.Errorf("%s cannot be null", f.Name)
		}
		return nil, nil
	}
	if ts, ok := v.(time.Time); ok {
		switch f.Type {
		case FieldDate:
			v = ts.Format(domain.DateLayout)
		case FieldDateTime:
			v = ts.UTC().Format(time.RFC3339)
		}
	}

	switch f.Type {
	case FieldString, FieldText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s expects a string, got %T", f.Name, v)
		}
		return s, nil
	case FieldInt:
		switch t := v.(type) {
		case int:
			return int64(t), nil
		case int64:
			return t, nil
		case float64:
			if t != math.Trunc(t) {
				return nil, fmt.Errorf("%s expects an integer, got %v", f.Name, t)
			}
			return int64(t), nil
		case string:
			n, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s expects an integer, got %q", f.Name, t)
			}
			return n, nil
		}
	case FieldFloat:
		switch t := v.(type) {
		case int:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case float64:
			return t, nil
		case string:
			n, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, fmt.Errorf("%s expects a number, got %q", f.Name, t)
			}
			return n, nil
		}
	case FieldBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return nil, fmt.Errorf("%s expects true or false, got %q", f.Name, t)
			}
			return b, nil
		}
	case FieldDate:
		if s, ok := v.(string); ok {
			if err := domain.ValidateDate(s); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			return s, nil
		}
	case FieldDateTime:
		if s, ok := v.(string); ok {
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("%s expects an RFC 3339 timestamp, got %q", f.Name, s)
			}
			return ts.UTC().Format(time.RFC3339), nil
		}
	case FieldEnum:
		if s, ok := v.(string); ok {
			if !slices.Contains(f.Choices, s) {
				return nil, fmt.Errorf("%s must be one of: %s", f.Name, strings.Join(f.Choices, ", "))
			}
			return s, nil
		}
	case FieldRef:
		if s, ok := v.(string); ok {
			if err := domain.ValidateUUID(s); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			return s, nil
		}
	}
	return nil, fmt.Errorf("%s: cannot use %v (%T) as %s", f.Name, v, v, f.Type)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
