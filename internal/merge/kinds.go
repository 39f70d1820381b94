package merge

import (
	"github.com/lherron/amyq/internal/domain"
)

// Mergeable kinds.
const (
	KindPerson          = "person"
	KindEvent           = "event"
	KindTrainingRequest = "training_request"
)

var genderChoices = []string{
	string(domain.GenderUndisclosed),
	string(domain.GenderMale),
	string(domain.GenderFemale),
	string(domain.GenderOther),
}

var requestStateChoices = []string{
	string(domain.RequestStatePending),
	string(domain.RequestStateAccepted),
	string(domain.RequestStateDiscard),
}

// PersonSchema lists the person fields an operator resolves when merging
// two people, and the collections that follow the surviving record.
var PersonSchema = &Schema{
	Kind:        KindPerson,
	Table:       "persons",
	LabelColumn: "username",
	Fields: []Field{
		{Name: "username", Type: FieldString},
		{Name: "personal", Type: FieldString},
		{Name: "middle", Type: FieldString},
		{Name: "family", Type: FieldString},
		{Name: "email", Type: FieldString, Nullable: true},
		{Name: "may_contact", Type: FieldBool},
		{Name: "publish_profile", Type: FieldBool},
		{Name: "gender", Type: FieldEnum, Choices: genderChoices},
		{Name: "airport", Column: "airport_uuid", Type: FieldRef, RefTable: "airports", Nullable: true},
		{Name: "github", Type: FieldString, Nullable: true},
		{Name: "twitter", Type: FieldString, Nullable: true},
		{Name: "url", Type: FieldString},
		{Name: "notes", Type: FieldText},
		{Name: "affiliation", Type: FieldString},
		{Name: "occupation", Type: FieldString},
		{Name: "orcid", Type: FieldString},
		{Name: "is_active", Type: FieldBool},
	},
	Relations: []Relation{
		{Name: "award_set", Kind: Owned, Table: "awards", OwnerColumn: "person_uuid", DedupeColumns: []string{"badge_uuid", "awarded"}},
		{Name: "qualification_set", Kind: Owned, Table: "qualifications", OwnerColumn: "person_uuid", DedupeColumns: []string{"lesson_uuid"}},
		{Name: "domains", Kind: ManyToMany, Table: "person_domains", OwnerColumn: "person_uuid", TargetColumn: "domain_uuid"},
		{Name: "languages", Kind: ManyToMany, Table: "person_languages", OwnerColumn: "person_uuid", TargetColumn: "language_uuid"},
		{Name: "task_set", Kind: Owned, Table: "tasks", OwnerColumn: "person_uuid", DedupeColumns: []string{"event_uuid", "role_uuid", "url"}},
		{Name: "trainingprogress_set", Kind: Owned, Table: "training_progress", OwnerColumn: "trainee_uuid"},
		{Name: "trainingrequest_set", Kind: Reference, Table: "training_requests", OwnerColumn: "person_uuid"},
		{Name: "assigned_events", Kind: Reference, Table: "events", OwnerColumn: "assigned_to_uuid"},
	},
}

// EventSchema covers workshops. Invoice requests, awards and training
// progress that point at an event are not transferred; they block the
// merge until an operator moves them.
var EventSchema = &Schema{
	Kind:        KindEvent,
	Table:       "events",
	LabelColumn: "slug",
	Fields: []Field{
		{Name: "slug", Type: FieldString},
		{Name: "completed", Type: FieldBool},
		{Name: "assigned_to", Column: "assigned_to_uuid", Type: FieldRef, RefTable: "persons", Nullable: true},
		{Name: "start", Column: "start_date", Type: FieldDate, Nullable: true},
		{Name: "end", Column: "end_date", Type: FieldDate, Nullable: true},
		{Name: "host", Column: "host_uuid", Type: FieldRef, RefTable: "organizations"},
		{Name: "administrator", Column: "administrator_uuid", Type: FieldRef, RefTable: "organizations", Nullable: true},
		{Name: "url", Type: FieldString, Nullable: true},
		{Name: "language", Column: "language_uuid", Type: FieldRef, RefTable: "languages", Nullable: true},
		{Name: "reg_key", Type: FieldString},
		{Name: "admin_fee", Type: FieldFloat, Nullable: true},
		{Name: "invoice_status", Type: FieldEnum, Choices: domain.InvoiceStatuses},
		{Name: "attendance", Type: FieldInt, Nullable: true},
		{Name: "contact", Type: FieldString},
		{Name: "country", Type: FieldString, Nullable: true},
		{Name: "venue", Type: FieldString},
		{Name: "address", Type: FieldString},
		{Name: "latitude", Type: FieldFloat, Nullable: true},
		{Name: "longitude", Type: FieldFloat, Nullable: true},
		{Name: "learners_pre", Type: FieldString},
		{Name: "learners_post", Type: FieldString},
		{Name: "instructors_pre", Type: FieldString},
		{Name: "instructors_post", Type: FieldString},
		{Name: "learners_longterm", Type: FieldString},
		{Name: "notes", Type: FieldText},
	},
	Relations: []Relation{
		{Name: "tags", Kind: ManyToMany, Table: "event_tags", OwnerColumn: "event_uuid", TargetColumn: "tag_uuid"},
		{Name: "task_set", Kind: Owned, Table: "tasks", OwnerColumn: "event_uuid", DedupeColumns: []string{"person_uuid", "role_uuid", "url"}},
		{Name: "todoitem_set", Kind: Owned, Table: "todo_items", OwnerColumn: "event_uuid", DedupeColumns: []string{"title", "due"}},
	},
}

// TrainingRequestSchema covers applications for instructor training.
var TrainingRequestSchema = &Schema{
	Kind:        KindTrainingRequest,
	Table:       "training_requests",
	LabelColumn: "email",
	Fields: []Field{
		{Name: "state", Type: FieldEnum, Choices: requestStateChoices},
		{Name: "person", Column: "person_uuid", Type: FieldRef, RefTable: "persons", Nullable: true},
		{Name: "group_name", Type: FieldString},
		{Name: "personal", Type: FieldString},
		{Name: "middle", Type: FieldString},
		{Name: "family", Type: FieldString},
		{Name: "email", Type: FieldString},
		{Name: "github", Type: FieldString, Nullable: true},
		{Name: "occupation", Type: FieldString},
		{Name: "occupation_other", Type: FieldString},
		{Name: "affiliation", Type: FieldString},
		{Name: "location", Type: FieldString},
		{Name: "country", Type: FieldString},
		{Name: "underresourced", Type: FieldBool},
		{Name: "domains_other", Type: FieldString},
		{Name: "underrepresented", Type: FieldString},
		{Name: "nonprofit_teaching_experience", Type: FieldText},
		{Name: "previous_training", Type: FieldString},
		{Name: "previous_training_other", Type: FieldText},
		{Name: "previous_training_explanation", Type: FieldText},
		{Name: "previous_experience", Type: FieldString},
		{Name: "previous_experience_other", Type: FieldText},
		{Name: "previous_experience_explanation", Type: FieldText},
		{Name: "programming_language_usage_frequency", Type: FieldString},
		{Name: "teaching_frequency_expectation", Type: FieldString},
		{Name: "teaching_frequency_expectation_other", Type: FieldString},
		{Name: "max_travelling_frequency", Type: FieldString},
		{Name: "max_travelling_frequency_other", Type: FieldString},
		{Name: "reason", Type: FieldText},
		{Name: "comment", Type: FieldText},
		{Name: "training_completion_agreement", Type: FieldBool},
		{Name: "workshop_teaching_agreement", Type: FieldBool},
		{Name: "data_privacy_agreement", Type: FieldBool},
		{Name: "code_of_conduct_agreement", Type: FieldBool},
		{Name: "created_at", Type: FieldDateTime},
		{Name: "last_updated_at", Type: FieldDateTime, Nullable: true},
		{Name: "notes", Type: FieldText},
	},
	Relations: []Relation{
		{Name: "domains", Kind: ManyToMany, Table: "request_domains", OwnerColumn: "request_uuid", TargetColumn: "domain_uuid"},
		{Name: "previous_involvement", Kind: ManyToMany, Table: "request_involvements", OwnerColumn: "request_uuid", TargetColumn: "role_uuid"},
	},
}

// DefaultRegistry returns the registry of every mergeable kind.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(PersonSchema, EventSchema, TrainingRequestSchema)
	if err != nil {
		panic(err)
	}
	return r
}
