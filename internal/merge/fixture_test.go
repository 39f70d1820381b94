package merge

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/lock"
	"github.com/lherron/amyq/internal/store"
	"github.com/lherron/amyq/internal/testutil"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	db     *db.DB
	store  *store.Store
	locker *lock.Memory
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.TempDB(t)
	locker := lock.NewMemory()
	engine, err := NewEngine(context.Background(), database.DB, DefaultRegistry(), WithLocker(locker))
	require.NoError(t, err)
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		db:     database,
		store:  store.New(database),
		locker: locker,
		engine: engine,
	}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) person(username string, edit func(*store.PersonCreateParams)) *store.CreateResult {
	f.t.Helper()
	params := store.PersonCreateParams{Username: username, Personal: "Ada", Family: "Lovelace"}
	if edit != nil {
		edit(&params)
	}
	res, err := f.store.Persons.Create(f.ctx, domain.SystemActorUUID, params)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) event(slug string, edit func(*store.EventCreateParams)) *store.CreateResult {
	f.t.Helper()
	host, err := f.store.Lookups.EnsureOrganization(f.ctx, "carpentries.org", "The Carpentries")
	require.NoError(f.t, err)
	params := store.EventCreateParams{Slug: slug, HostUUID: host, Venue: "Library"}
	if edit != nil {
		edit(&params)
	}
	res, err := f.store.Events.Create(f.ctx, domain.SystemActorUUID, params)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) request(email string) *store.CreateResult {
	f.t.Helper()
	res, err := f.store.Requests.Create(f.ctx, domain.SystemActorUUID, store.RequestCreateParams{
		Email:    email,
		Personal: "Grace",
		Family:   "Hopper",
		Reason:   "I want to teach",
	})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) lookup(table, name string) string {
	f.t.Helper()
	u, err := f.store.Lookups.Ensure(f.ctx, table, name)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) task(eventUUID, personUUID, role string) *store.CreateResult {
	f.t.Helper()
	res, err := f.store.Children.CreateTask(f.ctx, domain.SystemActorUUID, domain.Task{
		EventUUID:  eventUUID,
		PersonUUID: personUUID,
		RoleUUID:   f.lookup("roles", role),
	})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) award(personUUID, badge, awarded string) *store.CreateResult {
	f.t.Helper()
	res, err := f.store.Children.CreateAward(f.ctx, domain.SystemActorUUID, domain.Award{
		PersonUUID: personUUID,
		BadgeUUID:  f.lookup("badges", badge),
		Awarded:    awarded,
	})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) link(key, ownerUUID string, names ...string) {
	f.t.Helper()
	_, err := f.store.Lookups.Link(f.ctx, domain.SystemActorUUID, key, ownerUUID, names...)
	require.NoError(f.t, err)
}

func (f *fixture) count(query string, args ...any) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.db.GetContext(f.ctx, &n, query, args...))
	return n
}

func (f *fixture) exists(table, rowUUID string) bool {
	return f.count("SELECT COUNT(*) FROM "+table+" WHERE uuid = ?", rowUUID) > 0
}

// referencesTo counts rows in any table whose foreign key into table holds
// rowUUID.
func (f *fixture) referencesTo(table, rowUUID string) int {
	f.t.Helper()
	var tables []string
	require.NoError(f.t, f.db.SelectContext(f.ctx, &tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"))
	total := 0
	for _, t := range tables {
		var fks []foreignKeyInfo
		require.NoError(f.t, sqlx.SelectContext(f.ctx, f.db, &fks, fmt.Sprintf("PRAGMA foreign_key_list(%q)", t)))
		for _, fk := range fks {
			if fk.Table == table {
				total += f.count(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", t, fk.From), rowUUID)
			}
		}
	}
	return total
}

func (f *fixture) merge(plan *Plan) (*Result, error) {
	return f.engine.Merge(f.ctx, domain.SystemActorUUID, plan)
}
