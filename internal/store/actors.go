package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
	"github.com/lherron/amyq/internal/id"
)

// ActorStore manages the actors recorded against every change.
type ActorStore struct {
	store *Store
}

// Create adds an actor with a normalized slug.
func (as *ActorStore) Create(ctx context.Context, slug, displayName, role string) (*domain.Actor, error) {
	normalized, err := domain.NormalizeSlug(slug)
	if err != nil {
		return nil, &domain.ValidationError{Field: "slug", Message: err.Error()}
	}
	if role == "" {
		role = "human"
	}
	if err := domain.ValidateActorRole(role); err != nil {
		return nil, &domain.ValidationError{Field: "role", Message: err.Error()}
	}

	actor := &domain.Actor{UUID: newUUID(""), Slug: normalized, Role: role}
	if displayName != "" {
		actor.DisplayName = &displayName
	}

	err = as.store.withTx(ctx, func(tx *sqlx.Tx, _ *eventlog.Writer) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO actors (uuid, slug, display_name, role)
			VALUES (:uuid, :slug, :display_name, :role)
		`, actor)
		if err != nil {
			return fmt.Errorf("failed to create actor: %w", err)
		}
		return getByUUID(ctx, tx, actor, "actor", "actors", "*", actor.UUID)
	})
	if err != nil {
		return nil, err
	}
	return actor, nil
}

// List returns all actors ordered by friendly ID.
func (as *ActorStore) List(ctx context.Context) ([]domain.Actor, error) {
	var actors []domain.Actor
	if err := as.store.db.SelectContext(ctx, &actors, "SELECT * FROM actors ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list actors: %w", err)
	}
	return actors, nil
}

// Resolve maps a UUID, friendly ID (A-00001) or slug to an actor.
func (as *ActorStore) Resolve(ctx context.Context, identifier string) (*domain.Actor, error) {
	column := "slug"
	switch {
	case id.IsUUID(identifier):
		column = "uuid"
	case id.IsFriendlyID(identifier):
		column = "id"
	}

	var actor domain.Actor
	err := as.store.db.GetContext(ctx, &actor, "SELECT * FROM actors WHERE "+column+" = ?", identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "actor", Ref: identifier}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor %s: %w", identifier, err)
	}
	return &actor, nil
}
