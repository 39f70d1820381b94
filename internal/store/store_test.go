package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
	"github.com/lherron/amyq/internal/testutil"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testutil.TempDB(t))
}

func strPtr(s string) *string { return &s }

func TestActorCreateAndResolve(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	actor, err := s.Actors.Create(ctx, "Jane Doe", "Jane", "")
	require.NoError(t, err)
	assert.Equal(t, "jane-doe", actor.Slug)
	assert.Equal(t, "human", actor.Role)
	assert.Equal(t, "A-00002", actor.ID)
	require.NotNil(t, actor.DisplayName)
	assert.Equal(t, "Jane", *actor.DisplayName)

	for _, ref := range []string{actor.UUID, actor.ID, "jane-doe"} {
		got, err := s.Actors.Resolve(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, actor.UUID, got.UUID)
	}

	_, err = s.Actors.Resolve(ctx, "nobody")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	actors, err := s.Actors.List(ctx)
	require.NoError(t, err)
	require.Len(t, actors, 2)
	assert.Equal(t, "system", actors[0].Slug)
	assert.Equal(t, "jane-doe", actors[1].Slug)
}

func TestActorCreateValidation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Actors.Create(ctx, "bot", "", "robot")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	_, err = s.Actors.Create(ctx, "!!!", "", "")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestPersonCreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res, err := s.Persons.Create(ctx, domain.SystemActorUUID, PersonCreateParams{
		Username: "hpotter",
		Personal: "Harry",
		Family:   "Potter",
		Email:    strPtr("harry@example.org"),
		GitHub:   strPtr("hpotter"),
	})
	require.NoError(t, err)
	assert.Equal(t, "P-00001", res.ID)
	assert.Equal(t, int64(1), res.ETag)

	p, err := s.Persons.Get(ctx, res.UUID)
	require.NoError(t, err)
	assert.Equal(t, "hpotter", p.Username)
	assert.Equal(t, domain.GenderUndisclosed, p.Gender)
	assert.True(t, p.MayContact)
	assert.True(t, p.IsActive)

	entries, err := eventlog.List(ctx, s.DB(), eventlog.Filter{ResourceUUID: res.UUID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "person.created", entries[0].EventType)
}

func TestPersonCreateValidation(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Persons.Create(context.Background(), domain.SystemActorUUID, PersonCreateParams{
		Username: "bad name",
		Email:    strPtr("not-an-email"),
		Gender:   "X",
	})
	require.Error(t, err)

	var verrs domain.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, ve := range verrs {
		fields[i] = ve.Field
	}
	assert.ElementsMatch(t, []string{"username", "email", "gender"}, fields)
}

func TestPersonGetNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Persons.Get(context.Background(), "00000000-0000-4000-8000-000000000000")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPersonUpdate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res, err := s.Persons.Create(ctx, domain.SystemActorUUID, PersonCreateParams{Username: "hermione"})
	require.NoError(t, err)

	etag, err := s.Persons.Update(ctx, domain.SystemActorUUID, res.UUID, PersonUpdateParams{
		Affiliation: strPtr("Hogwarts"),
		Notes:       strPtr("prefect"),
	}, res.ETag)
	require.NoError(t, err)
	assert.Equal(t, res.ETag+1, etag)

	p, err := s.Persons.Get(ctx, res.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Hogwarts", p.Affiliation)
	assert.Equal(t, etag, p.ETag)

	entries, err := eventlog.List(ctx, s.DB(), eventlog.Filter{ResourceUUID: res.UUID, EventType: "person.updated"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Stale etag
	_, err = s.Persons.Update(ctx, domain.SystemActorUUID, res.UUID, PersonUpdateParams{Notes: strPtr("x")}, res.ETag)
	var mismatch *domain.ETagMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, res.ETag, mismatch.Expected)
	assert.Equal(t, etag, mismatch.Actual)

	// No changes leaves the etag alone
	same, err := s.Persons.Update(ctx, domain.SystemActorUUID, res.UUID, PersonUpdateParams{}, 0)
	require.NoError(t, err)
	assert.Equal(t, etag, same)

	_, err = s.Persons.Update(ctx, domain.SystemActorUUID, res.UUID, PersonUpdateParams{Email: strPtr("nope")}, 0)
	assert.True(t, domain.IsValidation(err))
}

func TestEventCreate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	host, err := s.Lookups.EnsureOrganization(ctx, "example.org", "Example")
	require.NoError(t, err)

	res, err := s.Events.Create(ctx, domain.SystemActorUUID, EventCreateParams{
		Slug:     "2024-05-01-helsinki",
		HostUUID: host,
		Start:    strPtr("2024-05-01"),
		End:      strPtr("2024-05-02"),
	})
	require.NoError(t, err)
	assert.Equal(t, "E-00001", res.ID)

	ev, err := s.Events.Get(ctx, res.UUID)
	require.NoError(t, err)
	assert.Equal(t, "unknown", ev.InvoiceStatus)
	assert.Equal(t, host, ev.HostUUID)

	_, err = s.Events.Create(ctx, domain.SystemActorUUID, EventCreateParams{
		Slug:     "backwards",
		HostUUID: host,
		Start:    strPtr("2024-05-02"),
		End:      strPtr("2024-05-01"),
	})
	assert.True(t, domain.IsValidation(err))

	_, err = s.Events.Create(ctx, domain.SystemActorUUID, EventCreateParams{Slug: "no-host"})
	assert.True(t, domain.IsValidation(err))
}

func TestRequestCreate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res, err := s.Requests.Create(ctx, domain.SystemActorUUID, RequestCreateParams{
		Personal: "Ron",
		Family:   "Weasley",
		Email:    "ron@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "R-00001", res.ID)

	req, err := s.Requests.Get(ctx, res.UUID)
	require.NoError(t, err)
	assert.Equal(t, "ron@example.org", req.Email)

	_, err = s.Requests.Create(ctx, domain.SystemActorUUID, RequestCreateParams{Email: "ron@example.org", State: "z"})
	assert.True(t, domain.IsValidation(err))
}

func TestChildren(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	person, err := s.Persons.Create(ctx, domain.SystemActorUUID, PersonCreateParams{Username: "neville"})
	require.NoError(t, err)
	host, err := s.Lookups.EnsureOrganization(ctx, "example.org", "")
	require.NoError(t, err)
	event, err := s.Events.Create(ctx, domain.SystemActorUUID, EventCreateParams{Slug: "herbology", HostUUID: host})
	require.NoError(t, err)
	role, err := s.Lookups.Ensure(ctx, "roles", "learner")
	require.NoError(t, err)
	badge, err := s.Lookups.Ensure(ctx, "badges", "swc-instructor")
	require.NoError(t, err)

	task, err := s.Children.CreateTask(ctx, domain.SystemActorUUID, domain.Task{
		EventUUID:  event.UUID,
		PersonUUID: person.UUID,
		RoleUUID:   role,
	})
	require.NoError(t, err)
	assert.Equal(t, "T-00001", task.ID)

	_, err = s.Children.CreateAward(ctx, domain.SystemActorUUID, domain.Award{
		PersonUUID: person.UUID,
		BadgeUUID:  badge,
		Awarded:    "2024-06-01",
	})
	require.NoError(t, err)

	_, err = s.Children.CreateAward(ctx, domain.SystemActorUUID, domain.Award{
		PersonUUID: person.UUID,
		BadgeUUID:  badge,
		Awarded:    "June",
	})
	assert.True(t, domain.IsValidation(err))

	tasks, err := s.Children.TasksForPerson(ctx, person.UUID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, event.UUID, tasks[0].EventUUID)

	byEvent, err := s.Children.TasksForEvent(ctx, event.UUID)
	require.NoError(t, err)
	assert.Len(t, byEvent, 1)

	awards, err := s.Children.AwardsForPerson(ctx, person.UUID)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "2024-06-01", awards[0].Awarded)
}

func TestLookupEnsure(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.Lookups.Ensure(ctx, "languages", "Finnish")
	require.NoError(t, err)
	second, err := s.Lookups.Ensure(ctx, "languages", "Finnish")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	found, err := s.Lookups.Find(ctx, "languages", "Finnish")
	require.NoError(t, err)
	assert.Equal(t, first, found)

	_, err = s.Lookups.Find(ctx, "languages", "Klingon")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = s.Lookups.Ensure(ctx, "persons", "x")
	assert.True(t, domain.IsValidation(err))
	_, err = s.Lookups.Ensure(ctx, "tags", "")
	assert.True(t, domain.IsValidation(err))

	a, err := s.Lookups.EnsureAirport(ctx, "HEL", "Helsinki")
	require.NoError(t, err)
	b, err := s.Lookups.EnsureAirport(ctx, "HEL", "")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLookupLink(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	person, err := s.Persons.Create(ctx, domain.SystemActorUUID, PersonCreateParams{Username: "luna"})
	require.NoError(t, err)

	n, err := s.Lookups.Link(ctx, domain.SystemActorUUID, "person.domains", person.UUID, "Chemistry", "Physics")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Lookups.Link(ctx, domain.SystemActorUUID, "person.domains", person.UUID, "Physics", "Biology")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Lookups.Link(ctx, domain.SystemActorUUID, "person.domains", person.UUID, "Biology")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int
	require.NoError(t, s.DB().Get(&count, "SELECT COUNT(*) FROM person_domains WHERE person_uuid = ?", person.UUID))
	assert.Equal(t, 3, count)

	entries, err := eventlog.List(ctx, s.DB(), eventlog.Filter{ResourceUUID: person.UUID, EventType: "person.linked"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = s.Lookups.Link(ctx, domain.SystemActorUUID, "person.hobbies", person.UUID, "Quidditch")
	assert.True(t, domain.IsValidation(err))
}
