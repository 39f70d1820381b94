package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/domain"
)

func TestGuardIgnoresEventLogButNotInvoices(t *testing.T) {
	f := newFixture(t)
	ev := f.event("2024-05-01-lima", nil)
	g := newGuard()

	keys, err := g.inbound(f.ctx, f.db, "events")
	require.NoError(t, err)
	var tables []string
	for _, k := range keys {
		tables = append(tables, k.Table+"."+k.Column)
	}
	assert.Contains(t, tables, "invoice_requests.event_uuid")
	assert.NotContains(t, tables, "event_log.resource_uuid")

	// Creating the event logged it, and the log entry does not protect it.
	require.Positive(t, f.count("SELECT COUNT(*) FROM event_log WHERE resource_uuid = ?", ev.UUID))
	refs, err := g.scan(f.ctx, f.db, "events", ev.UUID)
	require.NoError(t, err)
	assert.Empty(t, refs)

	inv, err := f.store.Children.CreateInvoiceRequest(f.ctx, domain.SystemActorUUID, domain.InvoiceRequest{EventUUID: ev.UUID})
	require.NoError(t, err)
	refs, err = g.scan(f.ctx, f.db, "events", ev.UUID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "invoice_requests", refs[0].Table)
	assert.Equal(t, inv.UUID, refs[0].RowUUID)
}
