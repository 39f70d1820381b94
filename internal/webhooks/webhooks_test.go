package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/merge"
)

type received struct {
	mu    sync.Mutex
	paths []string
	body  Payload
}

func newReceiver(t *testing.T, status int) (*httptest.Server, *received) {
	t.Helper()
	rec := &received{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.paths = append(rec.paths, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func sampleResult() *merge.Result {
	return &merge.Result{
		Kind:      "person",
		BaseUUID:  "b-uuid",
		BaseID:    "P-00001",
		OtherUUID: "o-uuid",
		OtherID:   "P-00002",
		ETag:      4,
		AppliedFields: []merge.AppliedField{
			{Field: "email", Side: merge.SideOther, Old: "a@x.org", New: "b@x.org", Changed: true},
			{Field: "username", Side: merge.SideBase, Old: "ada", New: "ada"},
		},
		Relations: []merge.RelationSummary{
			{Relation: "tasks", Transferred: 2, Collapsed: 1},
			{Relation: "awards", Discarded: 3},
		},
	}
}

func TestNewDispatcherNormalizesURLs(t *testing.T) {
	d := NewDispatcher([]string{
		"http://example.com/hook/{kind}/",
		"http://example.com/hook/{kind}",
		"ftp://example.com/hook",
		"  ",
		"not a url",
	}, nil)
	assert.Equal(t, []string{"http://example.com/hook/{kind}"}, d.URLs())
}

func TestNewPayload(t *testing.T) {
	p := NewPayload("actor-uuid", sampleResult())
	assert.Equal(t, "person.merged", p.Event)
	assert.Equal(t, []string{"email"}, p.ChangedFields)
	assert.Equal(t, 2, p.Transferred)
	assert.Equal(t, 1, p.Collapsed)
	assert.Equal(t, 3, p.Discarded)
	assert.Equal(t, "actor-uuid", p.ActorUUID)
}

func TestMergeCommittedPostsTemplatedURL(t *testing.T) {
	srv, rec := newReceiver(t, http.StatusNoContent)
	d := NewDispatcher([]string{srv.URL + "/hook/{kind}/{base_id}"}, nil)

	require.NoError(t, d.MergeCommitted(context.Background(), "actor-uuid", sampleResult()))

	assert.Equal(t, []string{"/hook/person/P-00001"}, rec.paths)
	assert.Equal(t, "P-00002", rec.body.OtherID)
	assert.Equal(t, int64(4), rec.body.ETag)
}

func TestMergeCommittedReportsFailures(t *testing.T) {
	ok, okRec := newReceiver(t, http.StatusOK)
	bad, _ := newReceiver(t, http.StatusInternalServerError)
	d := NewDispatcher([]string{ok.URL, bad.URL}, nil)

	err := d.MergeCommitted(context.Background(), "actor-uuid", sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.URL)
	assert.Len(t, okRec.paths, 1)
}

func TestMergeCommittedSkipsDryRun(t *testing.T) {
	srv, rec := newReceiver(t, http.StatusOK)
	d := NewDispatcher([]string{srv.URL}, nil)

	res := sampleResult()
	res.DryRun = true
	require.NoError(t, d.MergeCommitted(context.Background(), "actor-uuid", res))
	assert.Empty(t, rec.paths)
}

func TestMergeCommittedNoURLs(t *testing.T) {
	d := NewDispatcher(nil, nil)
	assert.NoError(t, d.MergeCommitted(context.Background(), "actor-uuid", sampleResult()))
}
