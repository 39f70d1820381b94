package selectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/id"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/store"
	"github.com/lherron/amyq/internal/testutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input       string
		expectKind  id.Type
		expectToken string
	}{
		{"p:alice", id.TypePerson, "alice"},
		{"p:P-00001", id.TypePerson, "P-00001"},
		{"e:2024-01-10-oslo", id.TypeEvent, "2024-01-10-oslo"},
		{"r:grace@example.org", id.TypeTrainingRequest, "grace@example.org"},
		{"P-00001", "", "P-00001"},
		{"alice", "", "alice"},
		{"", "", ""},
		{"p:", id.TypePerson, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel := Parse(tt.input)
			assert.Equal(t, tt.expectKind, sel.Kind)
			assert.Equal(t, tt.expectToken, sel.Token)
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	database := testutil.TempDB(t)
	s := store.New(database)

	email := "ada@example.org"
	ada, err := s.Persons.Create(ctx, domain.SystemActorUUID, store.PersonCreateParams{Username: "ada", Personal: "Ada", Family: "Lovelace", Email: &email})
	require.NoError(t, err)
	host, err := s.Lookups.EnsureOrganization(ctx, "carpentries.org", "The Carpentries")
	require.NoError(t, err)
	ev, err := s.Events.Create(ctx, domain.SystemActorUUID, store.EventCreateParams{Slug: "2024-01-10-oslo", HostUUID: host})
	require.NoError(t, err)
	for range 2 {
		_, err := s.Requests.Create(ctx, domain.SystemActorUUID, store.RequestCreateParams{Email: "dup@example.org", Personal: "D", Family: "Up"})
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		kind     id.Type
		selector string
		wantUUID string
	}{
		{"friendly id", id.TypePerson, ada.ID, ada.UUID},
		{"uuid", id.TypePerson, ada.UUID, ada.UUID},
		{"username", id.TypePerson, "ada", ada.UUID},
		{"prefixed username", id.TypePerson, "p:ada", ada.UUID},
		{"email", id.TypePerson, email, ada.UUID},
		{"slug", id.TypeEvent, "2024-01-10-oslo", ev.UUID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUUID, gotID, err := Resolve(ctx, database, tt.kind, tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUUID, gotUUID)
			assert.NotEmpty(t, gotID)
		})
	}

	_, _, err = Resolve(ctx, database, id.TypePerson, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = Resolve(ctx, database, id.TypePerson, ev.ID)
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "is a event ID")

	_, _, err = Resolve(ctx, database, id.TypePerson, "e:2024-01-10-oslo")
	assert.True(t, domain.IsValidation(err))

	_, _, err = Resolve(ctx, database, id.TypeTrainingRequest, "dup@example.org")
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "R-00001, R-00002")
}

func TestResolvePlan(t *testing.T) {
	ctx := context.Background()
	database := testutil.TempDB(t)
	s := store.New(database)

	a, err := s.Persons.Create(ctx, domain.SystemActorUUID, store.PersonCreateParams{Username: "ann", Personal: "Ann", Family: "Lee"})
	require.NoError(t, err)
	b, err := s.Persons.Create(ctx, domain.SystemActorUUID, store.PersonCreateParams{Username: "ann2", Personal: "Ann", Family: "Lee"})
	require.NoError(t, err)

	plan := &merge.Plan{Kind: "person", Base: "ann", Other: b.ID}
	require.NoError(t, ResolvePlan(ctx, database, plan))
	assert.Equal(t, a.UUID, plan.Base)
	assert.Equal(t, b.UUID, plan.Other)

	plan = &merge.Plan{Kind: "person", Base: "ann", Other: "ghost"}
	err = ResolvePlan(ctx, database, plan)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "other:")

	err = ResolvePlan(ctx, database, &merge.Plan{Kind: "widget", Base: "x", Other: "y"})
	assert.True(t, domain.IsValidation(err))
}
