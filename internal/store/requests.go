package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
)

const requestColumns = `uuid, id, state, person_uuid, group_name, personal, middle, family, email,
	github, occupation, affiliation, location, country, reason, comment, notes, etag, created_at, updated_at`

// RequestStore handles training request persistence.
type RequestStore struct {
	store *Store
}

// RequestCreateParams contains parameters for creating a training request.
type RequestCreateParams struct {
	UUID        string
	State       string
	PersonUUID  *string
	GroupName   string
	Personal    string
	Middle      string
	Family      string
	Email       string
	GitHub      *string
	Occupation  string
	Affiliation string
	Location    string
	Country     string
	Reason      string
	Comment     string
	Notes       string
}

func (p RequestCreateParams) validate() error {
	var errs domain.ValidationErrors
	if err := domain.ValidateEmail(p.Email); err != nil {
		errs = append(errs, &domain.ValidationError{Field: "email", Message: err.Error()})
	}
	if p.State != "" {
		if err := domain.ValidateRequestState(p.State); err != nil {
			errs = append(errs, &domain.ValidationError{Field: "state", Message: err.Error()})
		}
	}
	if p.GitHub != nil {
		if err := domain.ValidateGitHub(*p.GitHub); err != nil {
			errs = append(errs, &domain.ValidationError{Field: "github", Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Create creates a training request and logs training_request.created.
func (rs *RequestStore) Create(ctx context.Context, actorUUID string, params RequestCreateParams) (*CreateResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	req := domain.TrainingRequest{
		UUID:        newUUID(params.UUID),
		State:       domain.RequestState(params.State),
		PersonUUID:  params.PersonUUID,
		GroupName:   params.GroupName,
		Personal:    params.Personal,
		Middle:      params.Middle,
		Family:      params.Family,
		Email:       params.Email,
		GitHub:      params.GitHub,
		Occupation:  params.Occupation,
		Affiliation: params.Affiliation,
		Location:    params.Location,
		Country:     params.Country,
		Reason:      params.Reason,
		Comment:     params.Comment,
		Notes:       params.Notes,
	}
	if req.State == "" {
		req.State = domain.RequestStatePending
	}

	var result *CreateResult
	err := rs.store.withTx(ctx, func(tx *sqlx.Tx, ew *eventlog.Writer) error {
		var err error
		result, err = insert(ctx, tx, "training_requests", `
			INSERT INTO training_requests (
				uuid, state, person_uuid, group_name, personal, middle, family, email, github,
				occupation, affiliation, location, country, reason, comment, notes
			) VALUES (
				:uuid, :state, :person_uuid, :group_name, :personal, :middle, :family, :email, :github,
				:occupation, :affiliation, :location, :country, :reason, :comment, :notes
			)
		`, &req, req.UUID, true)
		if err != nil {
			return err
		}

		return ew.LogCreated(ctx, tx, actorUUID, "training_request", req.UUID, result.ETag, map[string]any{
			"email": req.Email,
			"state": req.State,
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Get loads a training request by UUID.
func (rs *RequestStore) Get(ctx context.Context, requestUUID string) (*domain.TrainingRequest, error) {
	var r domain.TrainingRequest
	if err := getByUUID(ctx, rs.store.db, &r, "training_request", "training_requests", requestColumns, requestUUID); err != nil {
		return nil, err
	}
	return &r, nil
}
