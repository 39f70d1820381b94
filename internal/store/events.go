package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
)

// EventStore handles workshop event persistence.
type EventStore struct {
	store *Store
}

// EventCreateParams contains parameters for creating a new event.
type EventCreateParams struct {
	UUID              string
	Slug              string
	HostUUID          string
	AdministratorUUID *string
	AssignedToUUID    *string
	Start             *string
	End               *string
	URL               *string
	LanguageUUID      *string
	Country           *string
	Venue             string
	InvoiceStatus     string
	Attendance        *int64
	Notes             string
}

func (p EventCreateParams) validate() error {
	var errs domain.ValidationErrors
	if err := domain.ValidateEventSlug(p.Slug); err != nil {
		errs = append(errs, &domain.ValidationError{Field: "slug", Message: err.Error()})
	}
	if p.HostUUID == "" {
		errs = append(errs, &domain.ValidationError{Field: "host", Message: "host organization is required"})
	}
	if err := domain.ValidateDateRange(p.Start, p.End); err != nil {
		errs = append(errs, &domain.ValidationError{Field: "end", Message: err.Error()})
	}
	if p.InvoiceStatus != "" {
		if err := domain.ValidateInvoiceStatus(p.InvoiceStatus); err != nil {
			errs = append(errs, &domain.ValidationError{Field: "invoice_status", Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Create creates a new event and logs an event.created entry.
func (es *EventStore) Create(ctx context.Context, actorUUID string, params EventCreateParams) (*CreateResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	event := domain.Event{
		UUID:              newUUID(params.UUID),
		Slug:              params.Slug,
		HostUUID:          params.HostUUID,
		AdministratorUUID: params.AdministratorUUID,
		AssignedToUUID:    params.AssignedToUUID,
		Start:             params.Start,
		End:               params.End,
		URL:               params.URL,
		LanguageUUID:      params.LanguageUUID,
		Country:           params.Country,
		Venue:             params.Venue,
		InvoiceStatus:     params.InvoiceStatus,
		Attendance:        params.Attendance,
		Notes:             params.Notes,
	}
	if event.InvoiceStatus == "" {
		event.InvoiceStatus = "unknown"
	}

	var result *CreateResult
	err := es.store.withTx(ctx, func(tx *sqlx.Tx, ew *eventlog.Writer) error {
		var err error
		result, err = insert(ctx, tx, "events", `
			INSERT INTO events (
				uuid, slug, host_uuid, administrator_uuid, assigned_to_uuid, start_date, end_date,
				url, language_uuid, country, venue, invoice_status, attendance, notes
			) VALUES (
				:uuid, :slug, :host_uuid, :administrator_uuid, :assigned_to_uuid, :start_date, :end_date,
				:url, :language_uuid, :country, :venue, :invoice_status, :attendance, :notes
			)
		`, &event, event.UUID, true)
		if err != nil {
			return err
		}

		return ew.LogCreated(ctx, tx, actorUUID, "event", event.UUID, result.ETag, map[string]any{
			"slug": event.Slug,
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Get loads an event by UUID.
func (es *EventStore) Get(ctx context.Context, eventUUID string) (*domain.Event, error) {
	var e domain.Event
	if err := getByUUID(ctx, es.store.db, &e, "event", "events", "*", eventUUID); err != nil {
		return nil, err
	}
	return &e, nil
}
