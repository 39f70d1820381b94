package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/amyq/internal/merge"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNewProducerValidatesConfig(t *testing.T) {
	_, err := NewProducer(ProducerConfig{Topic: "record.merged"}, nil)
	assert.ErrorContains(t, err, "broker")

	_, err = NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.ErrorContains(t, err, "topic")

	_, err = NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "brotli"}, nil)
	assert.ErrorContains(t, err, "brotli")

	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestEmitterPublishesMergedAndDeleted(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "record.merged", nil)
	e := NewEmitter(p, nil)

	res := &merge.Result{
		Kind:      "person",
		BaseUUID:  "base-uuid",
		BaseID:    "P-00001",
		OtherUUID: "other-uuid",
		OtherID:   "P-00002",
		ETag:      4,
		AppliedFields: []merge.AppliedField{
			{Field: "email", Side: merge.SideOther, Old: "a@x.org", New: "b@x.org", Changed: true},
			{Field: "personal", Side: merge.SideBase, Old: "Ada", New: "Ada"},
		},
		Relations: []merge.RelationSummary{{Relation: "task_set", Kind: merge.Owned, Strategy: merge.Union, Transferred: 1}},
	}
	require.NoError(t, e.MergeCommitted(context.Background(), "actor-uuid", res))

	require.Len(t, w.msgs, 2)
	merged, deleted := w.msgs[0], w.msgs[1]
	assert.Equal(t, "base-uuid", string(merged.Key))
	assert.Equal(t, "person.merged", header(merged, "event_type"))
	assert.Equal(t, "other-uuid", string(deleted.Key))
	assert.Equal(t, "person.deleted", header(deleted, "event_type"))

	var ev RecordEvent
	require.NoError(t, json.Unmarshal(merged.Value, &ev))
	assert.Equal(t, "P-00001", ev.RecordID)
	assert.Equal(t, "actor-uuid", ev.ActorUUID)
	assert.Equal(t, int64(4), ev.ETag)
	assert.Equal(t, SchemaVersion, ev.SchemaVersion)
	assert.Equal(t, []string{"base-uuid", "other-uuid"}, ev.SourceRecords)
	assert.False(t, ev.Timestamp.IsZero())

	var data mergeData
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	require.Len(t, data.ChangedFields, 1)
	assert.Equal(t, "email", data.ChangedFields[0].Field)
	assert.Equal(t, 1, data.Relations[0].Transferred)
}

func TestEmitterReportsWriteFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	e := NewEmitter(newProducer(w, "record.merged", nil), nil)

	err := e.MergeCommitted(context.Background(), "", &merge.Result{Kind: "event", BaseUUID: "b", OtherUUID: "o"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event.merged")
	assert.Contains(t, err.Error(), "event.deleted")
	assert.Contains(t, err.Error(), "leader not available")
}

// TestProducerAgainstBroker runs only when AMYQ_TEST_KAFKA_BROKERS is set.
func TestProducerAgainstBroker(t *testing.T) {
	brokers := os.Getenv("AMYQ_TEST_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("AMYQ_TEST_KAFKA_BROKERS not set")
	}
	p, err := NewProducer(ProducerConfig{Brokers: strings.Split(brokers, ","), Topic: "amyq-test-record-merged"}, nil)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, p.Publish(ctx, &RecordEvent{EventType: "person.merged", RecordUUID: "u", RecordKind: "person"}))
}
