// Package eventlog appends to and reads the event_log table.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/cursor"
	"github.com/lherron/amyq/internal/domain"
)

// Writer handles writing events to the event log
type Writer struct{}

// NewWriter creates a new event writer
func NewWriter() *Writer {
	return &Writer{}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(ctx context.Context, exec sqlx.ExecerContext, entry *domain.LogEntry) error {
	query := `
		INSERT INTO event_log (actor_uuid, resource_type, resource_uuid, event_type, etag, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := exec.ExecContext(ctx, query, entry.ActorUUID, entry.ResourceType, entry.ResourceUUID, entry.EventType, entry.ETag, entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// Log marshals payload and writes a "<resourceType>.<action>" event.
func (w *Writer) Log(ctx context.Context, exec sqlx.ExecerContext, actorUUID, resourceType, resourceUUID, action string, etag *int64, payload any) error {
	entry := &domain.LogEntry{
		ActorUUID:    &actorUUID,
		ResourceType: resourceType,
		ResourceUUID: &resourceUUID,
		EventType:    resourceType + "." + action,
		ETag:         etag,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", entry.EventType, err)
		}
		s := string(data)
		entry.Payload = &s
	}

	return w.LogEvent(ctx, exec, entry)
}

// LogCreated logs a record creation event
func (w *Writer) LogCreated(ctx context.Context, exec sqlx.ExecerContext, actorUUID, resourceType, resourceUUID string, etag int64, payload any) error {
	return w.Log(ctx, exec, actorUUID, resourceType, resourceUUID, "created", &etag, payload)
}

// LogDeleted logs a record deletion event
func (w *Writer) LogDeleted(ctx context.Context, exec sqlx.ExecerContext, actorUUID, resourceType, resourceUUID string, payload any) error {
	return w.Log(ctx, exec, actorUUID, resourceType, resourceUUID, "deleted", nil, payload)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ResourceUUID string
	ResourceType string
	EventType    string
	Limit        int
	Cursor       string // from a previous Page.NextCursor
}

// Page is one page of log entries, newest first.
type Page struct {
	Entries    []domain.LogEntry `json:"entries"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// List returns log entries newest first.
func List(ctx context.Context, q sqlx.QueryerContext, f Filter) ([]domain.LogEntry, error) {
	page, err := ListPage(ctx, q, f)
	if err != nil {
		return nil, err
	}
	return page.Entries, nil
}

// ListPage is List with a cursor for the next page. NextCursor is empty once
// the last entry has been returned or when f.Limit is zero.
func ListPage(ctx context.Context, q sqlx.QueryerContext, f Filter) (*Page, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "timestamp", "actor_uuid", "resource_type", "resource_uuid", "event_type", "etag", "payload")
	sb.From("event_log")
	if f.ResourceUUID != "" {
		sb.Where(sb.Equal("resource_uuid", f.ResourceUUID))
	}
	if f.ResourceType != "" {
		sb.Where(sb.Equal("resource_type", f.ResourceType))
	}
	if f.EventType != "" {
		sb.Where(sb.Equal("event_type", f.EventType))
	}
	if f.Cursor != "" {
		c, err := cursor.Decode(f.Cursor)
		if err != nil {
			return nil, &domain.ValidationError{Field: "cursor", Message: err.Error()}
		}
		c.Apply(sb, "id", true)
	}
	sb.OrderBy("id").Desc()
	if f.Limit > 0 {
		// one extra row tells whether another page exists
		sb.Limit(f.Limit + 1)
	}

	query, args := sb.Build()
	var entries []domain.LogEntry
	if err := sqlx.SelectContext(ctx, q, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	page := &Page{Entries: entries}
	if f.Limit > 0 && len(entries) > f.Limit {
		page.Entries = entries[:f.Limit]
		next, err := (&cursor.Cursor{LastID: page.Entries[f.Limit-1].ID}).Encode()
		if err != nil {
			return nil, err
		}
		page.NextCursor = next
	}
	return page, nil
}
