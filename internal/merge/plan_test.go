package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/domain"
)

const (
	uuidA = "0f8fad5b-d9cb-469f-a165-70867728950e"
	uuidB = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name   string
		plan   Plan
		fields []string
	}{
		{name: "valid", plan: Plan{Kind: KindPerson, Base: uuidA, Other: uuidB}},
		{name: "missing kind", plan: Plan{Base: uuidA, Other: uuidB}, fields: []string{"kind"}},
		{name: "bad uuid", plan: Plan{Kind: KindPerson, Base: "P-00001", Other: uuidB}, fields: []string{"base"}},
		{name: "same record", plan: Plan{Kind: KindPerson, Base: uuidA, Other: uuidA}, fields: []string{"other"}},
		{
			name:   "bad side",
			plan:   Plan{Kind: KindPerson, Base: uuidA, Other: uuidB, ScalarChoices: map[string]ScalarChoice{"email": {Side: "both"}}},
			fields: []string{"scalar_choices[email].side"},
		},
		{
			name:   "empty side",
			plan:   Plan{Kind: KindPerson, Base: uuidA, Other: uuidB, ScalarChoices: map[string]ScalarChoice{"email": {}}},
			fields: []string{"scalar_choices[email].side"},
		},
		{
			name:   "side is case sensitive",
			plan:   Plan{Kind: KindPerson, Base: uuidA, Other: uuidB, ScalarChoices: map[string]ScalarChoice{"email": {Side: "Other"}, "notes": {Side: SideOther}}},
			fields: []string{"scalar_choices[email].side"},
		},
		{
			name:   "bad strategy",
			plan:   Plan{Kind: KindPerson, Base: uuidA, Other: uuidB, RelationChoices: map[string]Strategy{"domains": "intersect"}},
			fields: []string{"relation_choices[domains]"},
		},
		{name: "negative etag", plan: Plan{Kind: KindPerson, Base: uuidA, Other: uuidB, BaseETag: -1}, fields: []string{"base_etag"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			var verrs domain.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			var got []string
			for _, ve := range verrs {
				got = append(got, ve.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestPlanKeysAreSorted(t *testing.T) {
	p := Plan{Kind: KindEvent, Base: uuidB, Other: uuidA}
	assert.Equal(t, []string{"event:" + uuidA, "event:" + uuidB}, p.Keys())
	assert.Equal(t, Union, p.Strategy("tags"))

	p.RelationChoices = map[string]Strategy{"tags": BaseOnly}
	assert.Equal(t, BaseOnly, p.Strategy("tags"))
}

func TestPlanCheck(t *testing.T) {
	p := Plan{
		Kind:  KindPerson,
		Base:  uuidA,
		Other: uuidB,
		ScalarChoices: map[string]ScalarChoice{
			"shoe_size": {Side: SideBase},
			"is_active": {Side: SideCombine},
			"gender":    {Side: SideOverride, Value: "X"},
			"notes":     {Side: SideCombine},
		},
		RelationChoices: map[string]Strategy{"friends": Union},
	}
	_, err := p.check(PersonSchema)
	require.Error(t, err)

	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 4)
	assert.Equal(t, "scalar_choices.gender", verrs[0].Field)
	assert.Equal(t, "scalar_choices.is_active", verrs[1].Field)
	assert.Contains(t, verrs[1].Message, "combine is only supported on text fields")
	assert.Equal(t, "scalar_choices.shoe_size", verrs[2].Field)
	assert.Equal(t, "relation_choices.friends", verrs[3].Field)

	p.ScalarChoices = map[string]ScalarChoice{"email": {Side: "Other"}}
	p.RelationChoices = nil
	_, err = p.check(PersonSchema)
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "scalar_choices.email", verrs[0].Field)

	p.ScalarChoices = map[string]ScalarChoice{"may_contact": {Side: SideOverride, Value: "false"}}
	p.RelationChoices = nil
	overrides, err := p.check(PersonSchema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"may_contact": false}, overrides)
}

func TestCoerce(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	tests := []struct {
		field   Field
		in      any
		want    any
		wantErr string
	}{
		{field: Field{Name: "attendance", Type: FieldInt, Nullable: true}, in: float64(12), want: int64(12)},
		{field: Field{Name: "attendance", Type: FieldInt}, in: 12.5, wantErr: "expects an integer"},
		{field: Field{Name: "attendance", Type: FieldInt}, in: "40", want: int64(40)},
		{field: Field{Name: "attendance", Type: FieldInt}, in: nil, wantErr: "cannot be null"},
		{field: Field{Name: "attendance", Type: FieldInt, Nullable: true}, in: nil, want: nil},
		{field: Field{Name: "admin_fee", Type: FieldFloat}, in: 250, want: float64(250)},
		{field: Field{Name: "completed", Type: FieldBool}, in: true, want: true},
		{field: Field{Name: "completed", Type: FieldBool}, in: "maybe", wantErr: "expects true or false"},
		{field: Field{Name: "start", Type: FieldDate}, in: "2024-02-30", wantErr: "start"},
		{field: Field{Name: "start", Type: FieldDate}, in: stamp, want: "2024-05-01"},
		{field: Field{Name: "created_at", Type: FieldDateTime}, in: stamp, want: "2024-05-01T10:30:00Z"},
		{field: Field{Name: "created_at", Type: FieldDateTime}, in: "2024-05-01T12:30:00+02:00", want: "2024-05-01T10:30:00Z"},
		{field: Field{Name: "state", Type: FieldEnum, Choices: []string{"p", "a"}}, in: "a", want: "a"},
		{field: Field{Name: "state", Type: FieldEnum, Choices: []string{"p", "a"}}, in: "d", wantErr: "must be one of: p, a"},
		{field: Field{Name: "host", Type: FieldRef}, in: "not-a-uuid", wantErr: "host"},
		{field: Field{Name: "personal", Type: FieldString}, in: 7, wantErr: "expects a string"},
	}

	for _, tt := range tests {
		got, err := coerce(tt.field, tt.in)
		if tt.wantErr != "" {
			require.Error(t, err, "%s %v", tt.field.Name, tt.in)
			assert.Contains(t, err.Error(), tt.wantErr)
			continue
		}
		require.NoError(t, err, "%s %v", tt.field.Name, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDetectConflicts(t *testing.T) {
	base := &Record{Values: map[string]any{"personal": "Ada", "email": nil, "notes": "x"}}
	other := &Record{Values: map[string]any{"personal": "Ada", "email": "ada@x.org", "notes": "y"}}

	conflicts := DetectConflicts(base, other, []string{"personal", "email", "notes"})
	assert.Equal(t, []string{"email", "notes"}, conflicts)
	assert.Equal(t, []string{"notes"}, unresolved(conflicts, map[string]ScalarChoice{"email": {Side: SideOther}}))
	assert.Empty(t, DetectConflicts(base, base, []string{"personal", "email", "notes"}))
}

func TestCombineText(t *testing.T) {
	assert.Equal(t, "a\nb", combineText("a", "b"))
	assert.Equal(t, "a", combineText("a", "a"))
	assert.Equal(t, "a", combineText("a", ""))
	assert.Equal(t, "b", combineText("", "b"))
	assert.Nil(t, combineText(nil, nil))
}

func TestPlanFieldName(t *testing.T) {
	assert.Equal(t, "scalar_choices[email].side", planFieldName("Plan.ScalarChoices[email].Side"))
	assert.Equal(t, "base_etag", planFieldName("Plan.BaseETag"))
	assert.Equal(t, "kind", planFieldName("Plan.Kind"))
}
