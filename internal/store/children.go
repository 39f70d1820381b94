package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
)

// ChildStore persists the satellite rows hanging off persons and events:
// tasks, awards, qualifications, training progress, to-do items and
// invoice requests.
type ChildStore struct {
	store *Store
}

func (cs *ChildStore) create(ctx context.Context, actorUUID, resourceType, table, query string, row any, rowUUID string, payload map[string]any) (*CreateResult, error) {
	var result *CreateResult
	err := cs.store.withTx(ctx, func(tx *sqlx.Tx, ew *eventlog.Writer) error {
		var err error
		result, err = insert(ctx, tx, table, query, row, rowUUID, false)
		if err != nil {
			return err
		}
		return ew.Log(ctx, tx, actorUUID, resourceType, rowUUID, "created", nil, payload)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTask records a person's role at an event.
func (cs *ChildStore) CreateTask(ctx context.Context, actorUUID string, task domain.Task) (*CreateResult, error) {
	task.UUID = newUUID(task.UUID)
	return cs.create(ctx, actorUUID, "task", "tasks", `
		INSERT INTO tasks (uuid, event_uuid, person_uuid, role_uuid, title, url)
		VALUES (:uuid, :event_uuid, :person_uuid, :role_uuid, :title, :url)
	`, &task, task.UUID, map[string]any{"event": task.EventUUID, "person": task.PersonUUID, "role": task.RoleUUID})
}

// CreateAward grants a badge to a person.
func (cs *ChildStore) CreateAward(ctx context.Context, actorUUID string, award domain.Award) (*CreateResult, error) {
	if err := domain.ValidateDate(award.Awarded); err != nil {
		return nil, &domain.ValidationError{Field: "awarded", Message: err.Error()}
	}
	award.UUID = newUUID(award.UUID)
	return cs.create(ctx, actorUUID, "award", "awards", `
		INSERT INTO awards (uuid, person_uuid, badge_uuid, awarded, event_uuid, awarded_by_uuid)
		VALUES (:uuid, :person_uuid, :badge_uuid, :awarded, :event_uuid, :awarded_by_uuid)
	`, &award, award.UUID, map[string]any{"person": award.PersonUUID, "badge": award.BadgeUUID, "awarded": award.Awarded})
}

// CreateQualification marks a person as qualified for a lesson.
func (cs *ChildStore) CreateQualification(ctx context.Context, actorUUID string, q domain.Qualification) (*CreateResult, error) {
	q.UUID = newUUID(q.UUID)
	return cs.create(ctx, actorUUID, "qualification", "qualifications", `
		INSERT INTO qualifications (uuid, person_uuid, lesson_uuid)
		VALUES (:uuid, :person_uuid, :lesson_uuid)
	`, &q, q.UUID, map[string]any{"person": q.PersonUUID, "lesson": q.LessonUUID})
}

// CreateTrainingProgress records a trainee's progress on a requirement.
func (cs *ChildStore) CreateTrainingProgress(ctx context.Context, actorUUID string, p domain.TrainingProgress) (*CreateResult, error) {
	if p.State == "" {
		p.State = "p"
	}
	p.UUID = newUUID(p.UUID)
	return cs.create(ctx, actorUUID, "training_progress", "training_progress", `
		INSERT INTO training_progress (uuid, trainee_uuid, requirement, state, evaluated_by_uuid, event_uuid, url, notes)
		VALUES (:uuid, :trainee_uuid, :requirement, :state, :evaluated_by_uuid, :event_uuid, :url, :notes)
	`, &p, p.UUID, map[string]any{"trainee": p.TraineeUUID, "requirement": p.Requirement, "state": p.State})
}

// CreateTodoItem adds a follow-up to an event.
func (cs *ChildStore) CreateTodoItem(ctx context.Context, actorUUID string, item domain.TodoItem) (*CreateResult, error) {
	if item.Due != nil {
		if err := domain.ValidateDate(*item.Due); err != nil {
			return nil, &domain.ValidationError{Field: "due", Message: err.Error()}
		}
	}
	item.UUID = newUUID(item.UUID)
	return cs.create(ctx, actorUUID, "todo_item", "todo_items", `
		INSERT INTO todo_items (uuid, event_uuid, completed, title, due, additional)
		VALUES (:uuid, :event_uuid, :completed, :title, :due, :additional)
	`, &item, item.UUID, map[string]any{"event": item.EventUUID, "title": item.Title})
}

// CreateInvoiceRequest raises an invoice request for an event.
func (cs *ChildStore) CreateInvoiceRequest(ctx context.Context, actorUUID string, inv domain.InvoiceRequest) (*CreateResult, error) {
	if inv.Status == "" {
		inv.Status = "not-invoiced"
	}
	inv.UUID = newUUID(inv.UUID)
	return cs.create(ctx, actorUUID, "invoice_request", "invoice_requests", `
		INSERT INTO invoice_requests (uuid, event_uuid, status, fee, organization_uuid, notes)
		VALUES (:uuid, :event_uuid, :status, :fee, :organization_uuid, :notes)
	`, &inv, inv.UUID, map[string]any{"event": inv.EventUUID, "status": inv.Status})
}

// TasksForPerson lists a person's tasks.
func (cs *ChildStore) TasksForPerson(ctx context.Context, personUUID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := cs.store.db.SelectContext(ctx, &tasks, "SELECT * FROM tasks WHERE person_uuid = ? ORDER BY id", personUUID); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// TasksForEvent lists an event's tasks.
func (cs *ChildStore) TasksForEvent(ctx context.Context, eventUUID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := cs.store.db.SelectContext(ctx, &tasks, "SELECT * FROM tasks WHERE event_uuid = ? ORDER BY id", eventUUID); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// AwardsForPerson lists a person's awards.
func (cs *ChildStore) AwardsForPerson(ctx context.Context, personUUID string) ([]domain.Award, error) {
	var awards []domain.Award
	if err := cs.store.db.SelectContext(ctx, &awards, "SELECT * FROM awards WHERE person_uuid = ? ORDER BY id", personUUID); err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	return awards, nil
}
