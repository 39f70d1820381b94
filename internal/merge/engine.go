// Package merge merges two records of the same kind: base absorbs the
// chosen field values and the relations of other, then other is deleted.
// A merge runs in one transaction under exclusive locks on both records.
package merge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
	"github.com/lherron/amyq/internal/lock"
	"github.com/lherron/amyq/internal/metrics"
	"github.com/lherron/amyq/internal/tracing"
)

// Notifier is told about committed merges. Failures are logged and do not
// affect the merge.
type Notifier interface {
	MergeCommitted(ctx context.Context, actorUUID string, res *Result) error
}

// Notifiers fans a merge out to several notifiers and joins their errors.
type Notifiers []Notifier

// MergeCommitted calls every notifier in order.
func (ns Notifiers) MergeCommitted(ctx context.Context, actorUUID string, res *Result) error {
	var errs []error
	for _, n := range ns {
		if err := n.MergeCommitted(ctx, actorUUID, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Engine runs merges against one database.
type Engine struct {
	db       *sqlx.DB
	registry *Registry
	locker   lock.Locker
	lockTTL  time.Duration
	logger   *zap.Logger
	notifier Notifier
	events   *eventlog.Writer
	guard    *guard
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker replaces the default merge_locks table locker.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLockTTL sets how long a lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.lockTTL = ttl }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNotifier registers a post-commit notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine creates an engine and checks registry against the database.
func NewEngine(ctx context.Context, database *sqlx.DB, registry *Registry, opts ...Option) (*Engine, error) {
	e := &Engine{
		db:       database,
		registry: registry,
		lockTTL:  lock.DefaultTTL,
		logger:   zap.NewNop(),
		events:   eventlog.NewWriter(),
		guard:    newGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locker == nil {
		e.locker = lock.NewSQLite(database, lock.Owner("amyq"))
	}

	if err := registry.Validate(ctx, database); err != nil {
		return nil, err
	}
	for _, kind := range registry.Kinds() {
		s, _ := registry.Lookup(kind)
		if _, err := e.guard.inbound(ctx, database, s.Table); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Registry returns the kinds this engine can merge.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Merge executes plan on behalf of actorUUID (the system actor when empty).
// Aborted merges leave the database untouched and return one of
// *UnresolvedConflictError, *ProtectedReferenceError, *ConcurrentMergeError,
// *domain.ETagMismatchError, *domain.NotFoundError or a validation error.
func (e *Engine) Merge(ctx context.Context, actorUUID string, plan *Plan) (res *Result, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "merge.Merge")
	defer span.End()
	span.SetAttributes(
		attribute.String("merge.kind", plan.Kind),
		attribute.String("merge.base", plan.Base),
		attribute.String("merge.other", plan.Other),
		attribute.Bool("merge.dry_run", plan.DryRun),
	)

	log := e.logger.With(
		zap.String("kind", plan.Kind),
		zap.String("base", plan.Base),
		zap.String("other", plan.Other),
		zap.Bool("dry_run", plan.DryRun),
	)

	defer func() {
		outcome := Outcome(res, err)
		metrics.MergesTotal.WithLabelValues(plan.Kind, outcome).Inc()
		metrics.MergeDuration.WithLabelValues(plan.Kind).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("merge.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Info("merge aborted", zap.String("outcome", outcome), zap.Error(err))
		}
	}()

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	schema, err := e.registry.Lookup(plan.Kind)
	if err != nil {
		return nil, err
	}
	overrides, err := plan.check(schema)
	if err != nil {
		return nil, err
	}
	if actorUUID == "" {
		actorUUID = domain.SystemActorUUID
	}

	locks, err := lock.AcquireAll(ctx, e.locker, plan.Keys(), e.lockTTL)
	if err != nil {
		var keyErr *lock.KeyError
		if errors.Is(err, lock.ErrNotAcquired) && errors.As(err, &keyErr) {
			metrics.LockContentionTotal.WithLabelValues(plan.Kind).Inc()
			return nil, &ConcurrentMergeError{Kind: plan.Kind, Key: keyErr.Key, Err: err}
		}
		return nil, fmt.Errorf("failed to lock records: %w", err)
	}
	defer func() {
		if relErr := lock.ReleaseAll(context.WithoutCancel(ctx), locks); relErr != nil {
			log.Warn("failed to release merge locks", zap.Error(relErr))
		}
	}()

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err = e.run(ctx, tx, log, actorUUID, schema, plan, overrides)
	if err != nil {
		return nil, err
	}
	if plan.DryRun {
		log.Info("merge dry run finished", zap.String("state", string(res.State)))
		return res, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}
	res.State = StateCommitted
	log.Info("merge committed",
		zap.String("base_id", res.BaseID),
		zap.String("other_id", res.OtherID),
		zap.Int("changed_fields", len(res.ChangedFields())),
		zap.Int("integrity_failures", len(res.IntegrityFailures)),
	)

	for _, rel := range res.Relations {
		for disposition, n := range map[string]int{
			"transferred": rel.Transferred,
			"collapsed":   rel.Collapsed,
			"discarded":   rel.Discarded,
			"skipped":     rel.Skipped,
		} {
			if n > 0 {
				metrics.RelationRowsTotal.WithLabelValues(plan.Kind, rel.Relation, disposition).Add(float64(n))
			}
		}
	}
	for _, f := range res.IntegrityFailures {
		metrics.IntegrityFailuresTotal.WithLabelValues(plan.Kind, f.Relation).Inc()
	}

	if e.notifier != nil {
		status := "sent"
		if nerr := e.notifier.MergeCommitted(ctx, actorUUID, res); nerr != nil {
			status = "failed"
			log.Warn("merge notification failed", zap.Error(nerr))
		}
		metrics.NotificationsTotal.WithLabelValues(status).Inc()
	}
	return res, nil
}

// run executes the merge steps inside tx. The caller commits.
func (e *Engine) run(ctx context.Context, tx *sqlx.Tx, log *zap.Logger, actorUUID string, schema *Schema, plan *Plan, overrides map[string]any) (*Result, error) {
	m := &machine{
		state: StateInitiated,
		enter: func(from, to State) {
			log.Debug("merge state", zap.String("from", string(from)), zap.String("to", string(to)))
		},
	}

	base, err := LoadRecord(ctx, tx, schema, plan.Base)
	if err != nil {
		return nil, err
	}
	other, err := LoadRecord(ctx, tx, schema, plan.Other)
	if err != nil {
		return nil, err
	}
	if plan.BaseETag > 0 && plan.BaseETag != base.ETag {
		return nil, &domain.ETagMismatchError{Resource: schema.Kind + " " + base.ID, Expected: plan.BaseETag, Actual: base.ETag}
	}
	if plan.OtherETag > 0 && plan.OtherETag != other.ETag {
		return nil, &domain.ETagMismatchError{Resource: schema.Kind + " " + other.ID, Expected: plan.OtherETag, Actual: other.ETag}
	}
	if err := e.checkRefs(ctx, tx, schema, overrides); err != nil {
		return nil, err
	}

	conflicts := DetectConflicts(base, other, schema.FieldNames())
	if missing := unresolved(conflicts, plan.ScalarChoices); len(missing) > 0 {
		return nil, &UnresolvedConflictError{Kind: schema.Kind, Base: base.ID, Other: other.ID, Fields: missing}
	}
	m.advance(StateConflictsChecked)

	applied, changes := applyFields(schema, base, other, plan.ScalarChoices, overrides)
	m.advance(StateFieldsApplied)

	res := &Result{
		Kind:              schema.Kind,
		BaseUUID:          base.UUID,
		BaseID:            base.ID,
		OtherUUID:         other.UUID,
		OtherID:           other.ID,
		AppliedFields:     applied,
		Relations:         make([]RelationSummary, 0, len(schema.Relations)),
		IntegrityFailures: []IntegrityFailure{},
		DryRun:            plan.DryRun,
	}

	r := &reattacher{tx: tx, base: base.UUID, other: other.UUID}
	for _, rel := range schema.Relations {
		sum, failures, err := r.reattach(ctx, rel, plan.Strategy(rel.Name))
		if err != nil {
			return nil, err
		}
		for _, f := range failures {
			log.Warn("relation row not transferred",
				zap.String("relation", f.Relation),
				zap.String("child", f.ChildUUID),
				zap.String("constraint", f.Constraint),
			)
		}
		res.Relations = append(res.Relations, sum)
		res.IntegrityFailures = append(res.IntegrityFailures, failures...)
	}
	m.advance(StateRelationsReattached)

	refs, err := e.guard.scan(ctx, tx, schema.Table, other.UUID)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		return nil, &ProtectedReferenceError{Kind: schema.Kind, UUID: other.UUID, ID: other.ID, References: refs}
	}

	dq := sqlbuilder.SQLite.NewDeleteBuilder()
	dq.DeleteFrom(schema.Table).Where(dq.Equal("uuid", other.UUID))
	query, args := dq.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if foreignKeyViolation(err) {
			return nil, &ProtectedReferenceError{Kind: schema.Kind, UUID: other.UUID, ID: other.ID}
		}
		return nil, fmt.Errorf("failed to delete %s %s: %w", schema.Kind, other.ID, err)
	}

	etag, err := persist(ctx, tx, schema, base.UUID, changes)
	if err != nil {
		return nil, err
	}
	res.ETag = etag

	if err := e.logMerge(ctx, tx, actorUUID, res); err != nil {
		return nil, err
	}

	res.State = m.state
	return res, nil
}

// checkRefs verifies that override values of reference fields point at
// existing rows.
func (e *Engine) checkRefs(ctx context.Context, q sqlx.QueryerContext, schema *Schema, overrides map[string]any) error {
	var errs domain.ValidationErrors
	for _, name := range sortedKeys(overrides) {
		f, _ := schema.Field(name)
		v := overrides[name]
		if f.Type != FieldRef || v == nil {
			continue
		}
		var n int
		if err := sqlx.GetContext(ctx, q, &n, "SELECT COUNT(*) FROM "+f.RefTable+" WHERE uuid = ?", v); err != nil {
			return fmt.Errorf("failed to look up %s: %w", f.RefTable, err)
		}
		if n == 0 {
			errs = append(errs, &domain.ValidationError{Field: "scalar_choices." + name, Message: fmt.Sprintf("no %s row with uuid %v", f.RefTable, v)})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// persist writes changed columns to base and returns its new etag. The
// update always runs so the etag trigger records the relation changes.
func persist(ctx context.Context, tx *sqlx.Tx, schema *Schema, baseUUID string, changes map[string]any) (int64, error) {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update(schema.Table)
	for _, col := range sortedKeys(changes) {
		ub.SetMore(ub.Assign(col, changes[col]))
	}
	ub.SetMore("updated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')")
	ub.Where(ub.Equal("uuid", baseUUID))
	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to update %s %s: %w", schema.Kind, baseUUID, err)
	}

	var etag int64
	err := tx.GetContext(ctx, &etag, "SELECT etag FROM "+schema.Table+" WHERE uuid = ?", baseUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.NotFoundError{Kind: schema.Kind, Ref: baseUUID}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s etag: %w", schema.Kind, err)
	}
	return etag, nil
}

type mergedPayload struct {
	OtherUUID         string            `json:"other_uuid"`
	OtherID           string            `json:"other_id"`
	Fields            []AppliedField    `json:"fields"`
	Relations         []RelationSummary `json:"relations"`
	IntegrityFailures int               `json:"integrity_failures"`
}

func (e *Engine) logMerge(ctx context.Context, tx *sqlx.Tx, actorUUID string, res *Result) error {
	payload := mergedPayload{
		OtherUUID:         res.OtherUUID,
		OtherID:           res.OtherID,
		Fields:            res.ChangedFields(),
		Relations:         res.Relations,
		IntegrityFailures: len(res.IntegrityFailures),
	}
	if err := e.events.Log(ctx, tx, actorUUID, res.Kind, res.BaseUUID, "merged", &res.ETag, payload); err != nil {
		return err
	}
	deleted := map[string]string{"id": res.OtherID, "merged_into": res.BaseUUID}
	if err := e.events.LogDeleted(ctx, tx, actorUUID, res.Kind, res.OtherUUID, deleted); err != nil {
		return err
	}
	for _, f := range res.IntegrityFailures {
		if err := e.events.Log(ctx, tx, actorUUID, res.Kind, res.BaseUUID, "integrity_failure", nil, f); err != nil {
			return err
		}
	}
	return nil
}

// Outcome classifies a merge result for metrics and logs.
func Outcome(res *Result, err error) string {
	var (
		conflict   *UnresolvedConflictError
		protected  *ProtectedReferenceError
		concurrent *ConcurrentMergeError
		mismatch   *domain.ETagMismatchError
	)
	switch {
	case err == nil && res != nil && res.DryRun:
		return "dry_run"
	case err == nil:
		return "committed"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &protected):
		return "protected"
	case errors.As(err, &concurrent):
		return "concurrent"
	case errors.As(err, &mismatch):
		return "etag_mismatch"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsValidation(err):
		return "invalid"
	}
	return "error"
}
