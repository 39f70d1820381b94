package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
)

// PersonStore handles person persistence operations.
type PersonStore struct {
	store *Store
}

// PersonCreateParams contains parameters for creating a new person.
type PersonCreateParams struct {
	UUID           string // optional: force specific UUID instead of auto-generating
	Username       string
	Personal       string
	Middle         string
	Family         string
	Email          *string
	Gender         string
	AirportUUID    *string
	GitHub         *string
	Twitter        *string
	URL            string
	Affiliation    string
	Occupation     string
	ORCID          string
	Notes          string
	MayContact     *bool
	PublishProfile bool
}

func (p PersonCreateParams) validate() error {
	var errs domain.ValidationErrors
	if err := domain.ValidateUsername(p.Username); err != nil {
		errs = append(errs, &domain.ValidationError{Field: "username", Message: err.Error()})
	}
	if p.Email != nil {
		if err := domain.ValidateEmail(*p.Email); err != nil {
			errs = append(errs, &domain.ValidationError{Field: "email", Message: err.Error()})
		}
	}
	if p.GitHub != nil {
		if err := domain.ValidateGitHub(*p.GitHub); err != nil {
			errs = append(errs, &domain.ValidationError{Field: "github", Message: err.Error()})
		}
	}
	if p.Gender != "" {
		if err := domain.ValidateGender(p.Gender); err != nil {
			errs = append(errs, &domain.ValidationError{Field: "gender", Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Create creates a new person and logs a person.created event.
func (ps *PersonStore) Create(ctx context.Context, actorUUID string, params PersonCreateParams) (*CreateResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	person := domain.Person{
		UUID:           newUUID(params.UUID),
		Username:       params.Username,
		Personal:       params.Personal,
		Middle:         params.Middle,
		Family:         params.Family,
		Email:          params.Email,
		MayContact:     params.MayContact == nil || *params.MayContact,
		PublishProfile: params.PublishProfile,
		Gender:         domain.Gender(params.Gender),
		AirportUUID:    params.AirportUUID,
		GitHub:         params.GitHub,
		Twitter:        params.Twitter,
		URL:            params.URL,
		Notes:          params.Notes,
		Affiliation:    params.Affiliation,
		Occupation:     params.Occupation,
		ORCID:          params.ORCID,
		IsActive:       true,
	}
	if person.Gender == "" {
		person.Gender = domain.GenderUndisclosed
	}

	var result *CreateResult
	err := ps.store.withTx(ctx, func(tx *sqlx.Tx, ew *eventlog.Writer) error {
		var err error
		result, err = insert(ctx, tx, "persons", `
			INSERT INTO persons (
				uuid, username, personal, middle, family, email, may_contact, publish_profile,
				gender, airport_uuid, github, twitter, url, notes, affiliation, occupation, orcid, is_active
			) VALUES (
				:uuid, :username, :personal, :middle, :family, :email, :may_contact, :publish_profile,
				:gender, :airport_uuid, :github, :twitter, :url, :notes, :affiliation, :occupation, :orcid, :is_active
			)
		`, &person, person.UUID, true)
		if err != nil {
			return err
		}

		return ew.LogCreated(ctx, tx, actorUUID, "person", person.UUID, result.ETag, map[string]any{
			"username": person.Username,
			"name":     person.FullName(),
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Get loads a person by UUID.
func (ps *PersonStore) Get(ctx context.Context, personUUID string) (*domain.Person, error) {
	var p domain.Person
	if err := getByUUID(ctx, ps.store.db, &p, "person", "persons", "*", personUUID); err != nil {
		return nil, err
	}
	return &p, nil
}

// PersonUpdateParams lists the columns Update may change; nil leaves a column as is.
type PersonUpdateParams struct {
	Personal    *string
	Family      *string
	Email       *string
	Affiliation *string
	Notes       *string
	IsActive    *bool
}

// Update modifies selected columns after an optional etag check.
func (ps *PersonStore) Update(ctx context.Context, actorUUID, personUUID string, params PersonUpdateParams, ifMatch int64) (int64, error) {
	if params.Email != nil {
		if err := domain.ValidateEmail(*params.Email); err != nil {
			return 0, &domain.ValidationError{Field: "email", Message: err.Error()}
		}
	}

	changes := map[string]any{}
	if params.Personal != nil {
		changes["personal"] = *params.Personal
	}
	if params.Family != nil {
		changes["family"] = *params.Family
	}
	if params.Email != nil {
		changes["email"] = *params.Email
	}
	if params.Affiliation != nil {
		changes["affiliation"] = *params.Affiliation
	}
	if params.Notes != nil {
		changes["notes"] = *params.Notes
	}
	if params.IsActive != nil {
		changes["is_active"] = *params.IsActive
	}

	var newETag int64
	err := ps.store.withTx(ctx, func(tx *sqlx.Tx, ew *eventlog.Writer) error {
		var current int64
		if err := tx.GetContext(ctx, &current, "SELECT etag FROM persons WHERE uuid = ?", personUUID); err != nil {
			return &domain.NotFoundError{Kind: "person", Ref: personUUID}
		}
		if err := checkETag(personUUID, current, ifMatch); err != nil {
			return err
		}
		if len(changes) == 0 {
			newETag = current
			return nil
		}

		if err := updateColumns(ctx, tx, "persons", personUUID, changes); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &newETag, "SELECT etag FROM persons WHERE uuid = ?", personUUID); err != nil {
			return fmt.Errorf("failed to read etag: %w", err)
		}
		return ew.Log(ctx, tx, actorUUID, "person", personUUID, "updated", &newETag, changes)
	})
	return newETag, err
}
