package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/eventlog"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/selectors"
)

// HeaderActor names the actor a request acts as.
const HeaderActor = "X-Amyq-Actor"

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version,omitempty"`
	Uptime   string   `json:"uptime"`
	Database string   `json:"database"`
	Kinds    []string `json:"kinds"`
}

// CompareRequest is the body of POST /v1/compare. Base and Other accept any
// selector the CLI accepts.
type CompareRequest struct {
	Kind  string `json:"kind"`
	Base  string `json:"base"`
	Other string `json:"other"`
}

// MergeResponse wraps a merge result with its classification.
type MergeResponse struct {
	Outcome string        `json:"outcome"`
	Result  *merge.Result `json:"result"`
	Summary string        `json:"summary"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Database: "ok",
		Kinds:    s.engine.Registry().Kinds(),
	}
	if err := s.db.PingContext(c.Request().Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = err.Error()
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCompare(c echo.Context) error {
	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	ctx := c.Request().Context()

	plan := &merge.Plan{Kind: req.Kind, Base: req.Base, Other: req.Other}
	if err := selectors.ResolvePlan(ctx, s.db, plan); err != nil {
		return err
	}
	cmp, err := s.engine.Compare(ctx, plan.Kind, plan.Base, plan.Other)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cmp)
}

func (s *Server) handleMerge(c echo.Context) error {
	var plan merge.Plan
	if err := c.Bind(&plan); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	ctx := c.Request().Context()

	actorUUID, err := s.actor(c)
	if err != nil {
		return err
	}
	if err := selectors.ResolvePlan(ctx, s.db, &plan); err != nil {
		return err
	}

	res, err := s.engine.Merge(ctx, actorUUID, &plan)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MergeResponse{
		Outcome: merge.Outcome(res, nil),
		Result:  res,
		Summary: res.Summary(),
	})
}

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

func (s *Server) handleLog(c echo.Context) error {
	f := eventlog.Filter{Limit: defaultLogLimit}
	err := echo.QueryParamsBinder(c).
		String("resource_uuid", &f.ResourceUUID).
		String("resource_type", &f.ResourceType).
		String("event_type", &f.EventType).
		Int("limit", &f.Limit).
		String("cursor", &f.Cursor).
		BindError()
	if err != nil {
		return &domain.ValidationError{Field: "query", Message: err.Error()}
	}
	if f.Limit <= 0 || f.Limit > maxLogLimit {
		return &domain.ValidationError{Field: "limit", Message: "must be between 1 and 500"}
	}

	page, err := eventlog.ListPage(c.Request().Context(), s.db, f)
	if err != nil {
		return err
	}
	if page.Entries == nil {
		page.Entries = []domain.LogEntry{}
	}
	return c.JSON(http.StatusOK, page)
}

// actor resolves the request's actor header, falling back to the server's
// default actor and then the system actor.
func (s *Server) actor(c echo.Context) (string, error) {
	ref := strings.TrimSpace(c.Request().Header.Get(HeaderActor))
	if ref == "" {
		ref = s.defaultActor
	}
	if ref == "" {
		return domain.SystemActorUUID, nil
	}
	actor, err := s.store.Actors.Resolve(c.Request().Context(), ref)
	if err != nil {
		return "", err
	}
	return actor.UUID, nil
}
