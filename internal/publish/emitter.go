package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/tracing"
)

// Emitter turns committed merges into record events. It implements
// merge.Notifier.
type Emitter struct {
	producer *Producer
	logger   *zap.Logger
}

var _ merge.Notifier = (*Emitter)(nil)

// NewEmitter creates a new event emitter
func NewEmitter(producer *Producer, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{producer: producer, logger: logger}
}

type mergeData struct {
	ChangedFields     []merge.AppliedField     `json:"changed_fields"`
	Relations         []merge.RelationSummary  `json:"relations"`
	IntegrityFailures []merge.IntegrityFailure `json:"integrity_failures,omitempty"`
}

// MergeCommitted emits <kind>.merged for the surviving record and
// <kind>.deleted for the absorbed one.
func (e *Emitter) MergeCommitted(ctx context.Context, actorUUID string, res *merge.Result) error {
	ctx, span := tracing.StartSpan(ctx, "publish.Emitter.MergeCommitted")
	defer span.End()

	data, err := json.Marshal(mergeData{
		ChangedFields:     res.ChangedFields(),
		Relations:         res.Relations,
		IntegrityFailures: res.IntegrityFailures,
	})
	if err != nil {
		return fmt.Errorf("failed to encode merge data: %w", err)
	}

	merged := &RecordEvent{
		EventType:     res.Kind + ".merged",
		RecordUUID:    res.BaseUUID,
		RecordID:      res.BaseID,
		RecordKind:    res.Kind,
		ActorUUID:     actorUUID,
		ETag:          res.ETag,
		Data:          data,
		SourceRecords: []string{res.BaseUUID, res.OtherUUID},
	}
	deleted := &RecordEvent{
		EventType:     res.Kind + ".deleted",
		RecordUUID:    res.OtherUUID,
		RecordID:      res.OtherID,
		RecordKind:    res.Kind,
		ActorUUID:     actorUUID,
		SourceRecords: []string{res.BaseUUID},
	}

	var errs []error
	for _, ev := range []*RecordEvent{merged, deleted} {
		if err := e.producer.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		e.logger.Warn("merge notification incomplete",
			zap.String("kind", res.Kind),
			zap.String("base", res.BaseID),
			zap.String("other", res.OtherID),
			zap.Error(err))
		return err
	}
	return nil
}
