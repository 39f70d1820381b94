package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/domain"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/metrics"
	"github.com/lherron/amyq/internal/tracing"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message   string         `json:"message"`
	Outcome   string         `json:"outcome,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token == "" {
			return next(c)
		}
		token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			res.Header().Set(echo.HeaderXRequestID, id)

			if err := next(c); err != nil {
				c.Error(err)
			}

			logger.Info("request",
				zap.String("request_id", id),
				zap.String("trace_id", tracing.GetTraceID(req.Context())),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", res.Status),
				zap.String("remote_ip", c.RealIP()),
				zap.Duration("response_time", time.Since(start)),
				zap.Int64("response_size", res.Size),
			)
			return nil
		}
	}
}

func requestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}

// statusFor maps engine and store errors to HTTP status codes.
func statusFor(err error) int {
	var (
		httpErr    *echo.HTTPError
		conflict   *merge.UnresolvedConflictError
		protected  *merge.ProtectedReferenceError
		concurrent *merge.ConcurrentMergeError
		mismatch   *domain.ETagMismatchError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.As(err, &conflict), errors.As(err, &protected):
		return http.StatusConflict
	case errors.As(err, &concurrent):
		return http.StatusLocked
	case errors.As(err, &mismatch):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	ctx := c.Request().Context()
	code := statusFor(err)

	resp := ErrorResponse{
		Message:   err.Error(),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		TraceID:   tracing.GetTraceID(ctx),
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		resp.Message = http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			resp.Message = msg
		}
	} else {
		resp.Outcome = merge.Outcome(nil, err)
	}

	var (
		conflict  *merge.UnresolvedConflictError
		protected *merge.ProtectedReferenceError
		verrs     domain.ValidationErrors
	)
	switch {
	case errors.As(err, &conflict):
		resp.Meta = map[string]any{"fields": conflict.Fields}
	case errors.As(err, &protected):
		refs := make([]string, len(protected.References))
		for i, r := range protected.References {
			refs[i] = r.String()
		}
		resp.Meta = map[string]any{"references": refs}
	case errors.As(err, &verrs):
		fields := map[string]string{}
		for _, ve := range verrs {
			fields[ve.Field] = ve.Message
		}
		resp.Meta = map[string]any{"fields": fields}
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("route", c.Path()), zap.Error(err))
		resp.Message = "internal server error"
	}
	_ = c.JSON(code, resp)
}
