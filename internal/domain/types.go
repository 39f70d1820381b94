package domain

// SystemActorUUID is the actor seeded by the baseline migration.
const SystemActorUUID = "00000000-0000-4000-8000-000000000001"

// Gender values accepted on a person record
type Gender string

const (
	GenderUndisclosed Gender = "U"
	GenderMale        Gender = "M"
	GenderFemale      Gender = "F"
	GenderOther       Gender = "O"
)

// RequestState is the review state of a training request
type RequestState string

const (
	RequestStatePending  RequestState = "p"
	RequestStateAccepted RequestState = "a"
	RequestStateDiscard  RequestState = "d"
)

// InvoiceStatus values for events
var InvoiceStatuses = []string{
	"unknown", "invoiced", "not-invoiced", "na-historic", "na-member",
	"na-self-org", "na-waiver", "na-other",
}

// ProgressState values for training progress rows
var ProgressStates = []string{"n", "f", "p", "a"}

// Actor represents an actor in the system
type Actor struct {
	UUID        string  `json:"uuid" db:"uuid"`
	ID          string  `json:"id" db:"id"`
	Slug        string  `json:"slug" db:"slug"`
	DisplayName *string `json:"display_name,omitempty" db:"display_name"`
	Role        string  `json:"role" db:"role"` // human, agent, system
	CreatedAt   string  `json:"created_at" db:"created_at"`
	UpdatedAt   string  `json:"updated_at" db:"updated_at"`
}

// Person is a workshop participant, instructor or host contact.
type Person struct {
	UUID           string  `json:"uuid" db:"uuid"`
	ID             string  `json:"id" db:"id"`
	Username       string  `json:"username" db:"username"`
	Personal       string  `json:"personal" db:"personal"`
	Middle         string  `json:"middle" db:"middle"`
	Family         string  `json:"family" db:"family"`
	Email          *string `json:"email,omitempty" db:"email"`
	MayContact     bool    `json:"may_contact" db:"may_contact"`
	PublishProfile bool    `json:"publish_profile" db:"publish_profile"`
	Gender         Gender  `json:"gender" db:"gender"`
	AirportUUID    *string `json:"airport_uuid,omitempty" db:"airport_uuid"`
	GitHub         *string `json:"github,omitempty" db:"github"`
	Twitter        *string `json:"twitter,omitempty" db:"twitter"`
	URL            string  `json:"url" db:"url"`
	Notes          string  `json:"notes" db:"notes"`
	Affiliation    string  `json:"affiliation" db:"affiliation"`
	Occupation     string  `json:"occupation" db:"occupation"`
	ORCID          string  `json:"orcid" db:"orcid"`
	IsActive       bool    `json:"is_active" db:"is_active"`
	ETag           int64   `json:"etag" db:"etag"`
	CreatedAt      string  `json:"created_at" db:"created_at"`
	UpdatedAt      string  `json:"updated_at" db:"updated_at"`
}

// FullName joins the personal, middle and family names.
func (p *Person) FullName() string {
	name := p.Personal
	if p.Middle != "" {
		name += " " + p.Middle
	}
	if p.Family != "" {
		name += " " + p.Family
	}
	return name
}

// Event is a workshop run by a host organization.
type Event struct {
	UUID              string   `json:"uuid" db:"uuid"`
	ID                string   `json:"id" db:"id"`
	Slug              string   `json:"slug" db:"slug"`
	Completed         bool     `json:"completed" db:"completed"`
	AssignedToUUID    *string  `json:"assigned_to_uuid,omitempty" db:"assigned_to_uuid"`
	Start             *string  `json:"start,omitempty" db:"start_date"`
	End               *string  `json:"end,omitempty" db:"end_date"`
	HostUUID          string   `json:"host_uuid" db:"host_uuid"`
	AdministratorUUID *string  `json:"administrator_uuid,omitempty" db:"administrator_uuid"`
	URL               *string  `json:"url,omitempty" db:"url"`
	LanguageUUID      *string  `json:"language_uuid,omitempty" db:"language_uuid"`
	RegKey            string   `json:"reg_key" db:"reg_key"`
	AdminFee          *float64 `json:"admin_fee,omitempty" db:"admin_fee"`
	InvoiceStatus     string   `json:"invoice_status" db:"invoice_status"`
	Attendance        *int64   `json:"attendance,omitempty" db:"attendance"`
	Contact           string   `json:"contact" db:"contact"`
	Country           *string  `json:"country,omitempty" db:"country"`
	Venue             string   `json:"venue" db:"venue"`
	Address           string   `json:"address" db:"address"`
	Latitude          *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64 `json:"longitude,omitempty" db:"longitude"`
	LearnersPre       string   `json:"learners_pre" db:"learners_pre"`
	LearnersPost      string   `json:"learners_post" db:"learners_post"`
	InstructorsPre    string   `json:"instructors_pre" db:"instructors_pre"`
	InstructorsPost   string   `json:"instructors_post" db:"instructors_post"`
	LearnersLongterm  string   `json:"learners_longterm" db:"learners_longterm"`
	Notes             string   `json:"notes" db:"notes"`
	ETag              int64    `json:"etag" db:"etag"`
	CreatedAt         string   `json:"created_at" db:"created_at"`
	UpdatedAt         string   `json:"updated_at" db:"updated_at"`
}

// TrainingRequest is an application to attend instructor training. Only the
// columns the store writes directly are mapped here; the merge engine reads
// the full row generically.
type TrainingRequest struct {
	UUID        string       `json:"uuid" db:"uuid"`
	ID          string       `json:"id" db:"id"`
	State       RequestState `json:"state" db:"state"`
	PersonUUID  *string      `json:"person_uuid,omitempty" db:"person_uuid"`
	GroupName   string       `json:"group_name" db:"group_name"`
	Personal    string       `json:"personal" db:"personal"`
	Middle      string       `json:"middle" db:"middle"`
	Family      string       `json:"family" db:"family"`
	Email       string       `json:"email" db:"email"`
	GitHub      *string      `json:"github,omitempty" db:"github"`
	Occupation  string       `json:"occupation" db:"occupation"`
	Affiliation string       `json:"affiliation" db:"affiliation"`
	Location    string       `json:"location" db:"location"`
	Country     string       `json:"country" db:"country"`
	Reason      string       `json:"reason" db:"reason"`
	Comment     string       `json:"comment" db:"comment"`
	Notes       string       `json:"notes" db:"notes"`
	ETag        int64        `json:"etag" db:"etag"`
	CreatedAt   string       `json:"created_at" db:"created_at"`
	UpdatedAt   string       `json:"updated_at" db:"updated_at"`
}

// Task is a person's role at an event.
type Task struct {
	UUID       string `json:"uuid" db:"uuid"`
	ID         string `json:"id" db:"id"`
	EventUUID  string `json:"event_uuid" db:"event_uuid"`
	PersonUUID string `json:"person_uuid" db:"person_uuid"`
	RoleUUID   string `json:"role_uuid" db:"role_uuid"`
	Title      string `json:"title" db:"title"`
	URL        string `json:"url" db:"url"`
	CreatedAt  string `json:"created_at" db:"created_at"`
}

// Award records a badge granted to a person.
type Award struct {
	UUID          string  `json:"uuid" db:"uuid"`
	ID            string  `json:"id" db:"id"`
	PersonUUID    string  `json:"person_uuid" db:"person_uuid"`
	BadgeUUID     string  `json:"badge_uuid" db:"badge_uuid"`
	Awarded       string  `json:"awarded" db:"awarded"`
	EventUUID     *string `json:"event_uuid,omitempty" db:"event_uuid"`
	AwardedByUUID *string `json:"awarded_by_uuid,omitempty" db:"awarded_by_uuid"`
	CreatedAt     string  `json:"created_at" db:"created_at"`
}

// Qualification marks a person as qualified to teach a lesson.
type Qualification struct {
	UUID       string `json:"uuid" db:"uuid"`
	ID         string `json:"id" db:"id"`
	PersonUUID string `json:"person_uuid" db:"person_uuid"`
	LessonUUID string `json:"lesson_uuid" db:"lesson_uuid"`
	CreatedAt  string `json:"created_at" db:"created_at"`
}

// TrainingProgress tracks a trainee against one training requirement.
type TrainingProgress struct {
	UUID            string  `json:"uuid" db:"uuid"`
	ID              string  `json:"id" db:"id"`
	TraineeUUID     string  `json:"trainee_uuid" db:"trainee_uuid"`
	Requirement     string  `json:"requirement" db:"requirement"`
	State           string  `json:"state" db:"state"`
	EvaluatedByUUID *string `json:"evaluated_by_uuid,omitempty" db:"evaluated_by_uuid"`
	EventUUID       *string `json:"event_uuid,omitempty" db:"event_uuid"`
	URL             *string `json:"url,omitempty" db:"url"`
	Notes           string  `json:"notes" db:"notes"`
	CreatedAt       string  `json:"created_at" db:"created_at"`
}

// TodoItem is an administrative follow-up attached to an event.
type TodoItem struct {
	UUID       string  `json:"uuid" db:"uuid"`
	ID         string  `json:"id" db:"id"`
	EventUUID  string  `json:"event_uuid" db:"event_uuid"`
	Completed  bool    `json:"completed" db:"completed"`
	Title      string  `json:"title" db:"title"`
	Due        *string `json:"due,omitempty" db:"due"`
	Additional string  `json:"additional" db:"additional"`
	CreatedAt  string  `json:"created_at" db:"created_at"`
}

// InvoiceRequest is a billing request raised for an event.
type InvoiceRequest struct {
	UUID             string   `json:"uuid" db:"uuid"`
	ID               string   `json:"id" db:"id"`
	EventUUID        string   `json:"event_uuid" db:"event_uuid"`
	Status           string   `json:"status" db:"status"`
	Fee              *float64 `json:"fee,omitempty" db:"fee"`
	OrganizationUUID *string  `json:"organization_uuid,omitempty" db:"organization_uuid"`
	Notes            string   `json:"notes" db:"notes"`
	CreatedAt        string   `json:"created_at" db:"created_at"`
}

// Organization hosts or administers events.
type Organization struct {
	UUID     string  `json:"uuid" db:"uuid"`
	Domain   string  `json:"domain" db:"domain"`
	Fullname string  `json:"fullname" db:"fullname"`
	Country  *string `json:"country,omitempty" db:"country"`
}

// Airport is the nearest airport of a person.
type Airport struct {
	UUID      string   `json:"uuid" db:"uuid"`
	IATA      string   `json:"iata" db:"iata"`
	Fullname  string   `json:"fullname" db:"fullname"`
	Country   string   `json:"country" db:"country"`
	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`
}

// Lookup is a row of a simple named lookup table (roles, badges, tags,
// languages, knowledge domains, lessons).
type Lookup struct {
	UUID string `json:"uuid" db:"uuid"`
	Name string `json:"name" db:"name"`
}

// LogEntry represents an entry in the event log
type LogEntry struct {
	ID           int64   `json:"id" db:"id"`
	Timestamp    string  `json:"timestamp" db:"timestamp"`
	ActorUUID    *string `json:"actor_uuid,omitempty" db:"actor_uuid"`
	ResourceType string  `json:"resource_type" db:"resource_type"`
	ResourceUUID *string `json:"resource_uuid,omitempty" db:"resource_uuid"`
	EventType    string  `json:"event_type" db:"event_type"`
	ETag         *int64  `json:"etag,omitempty" db:"etag"`
	Payload      *string `json:"payload,omitempty" db:"payload"` // JSON
}
