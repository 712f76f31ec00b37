package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sweer/internal/entity"
	"sweer/pkg/apperr"
	"sweer/pkg/logg"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type call func(ctx context.Context) (any, error)

// serve decodes req when given, runs fn and writes exactly one envelope.
// Failures of any kind, panics included, become status "error" with HTTP 200.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, op string, req entity.Request, fn call) {
	started := time.Now()
	logger := s.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.RequestID, middleware.GetReqID(r.Context())),
	)

	payload, err := s.invoke(r, op, req, fn)

	status, code := entity.StatusSuccess, ""
	if err != nil {
		status, code = entity.StatusError, apperr.CodeOf(err)
		payload = entity.Failure(apperr.Message(err))

		logger.Warn("Operation failed", zap.String(logg.Code, code), zap.Error(err))
	}

	metricOperations.WithLabelValues(op, string(status), code).Inc()
	metricOperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())

	respondJSON(w, payload)
}

func (s *Server) invoke(r *http.Request, op string, req entity.Request, fn call) (payload any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Handler panicked", zap.String(logg.Operation, op), zap.Any("panic", rec))

			err = apperr.Wrap(op, apperr.CodeInternal, fmt.Errorf("%v", rec), map[string]any{
				apperr.MetaReason: "panic",
			})
		}
	}()

	if req != nil {
		if err := decode(r, op, req); err != nil {
			return nil, err
		}
	}

	return fn(r.Context())
}

func decode(r *http.Request, op string, req entity.Request) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return apperr.InvalidReqError(op, "body", fmt.Errorf("invalid request body: %w", err))
	}

	if err := req.Validate(); err != nil {
		var fieldErr *entity.FieldError
		if errors.As(err, &fieldErr) {
			return apperr.InvalidReqError(op, fieldErr.Field, err)
		}

		return apperr.InvalidReqError(op, "body", err)
	}

	return nil
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "info", nil, func(ctx context.Context) (any, error) {
		return s.controller.Info(ctx)
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req entity.OpenRequest

	s.serve(w, r, "open", &req, func(ctx context.Context) (any, error) {
		resp, err := s.controller.Open(ctx, req.URL.String)
		if err != nil {
			return nil, err
		}

		metricPageOpen.Set(1)

		return resp, nil
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "close", nil, func(ctx context.Context) (any, error) {
		resp, err := s.controller.Close(ctx)
		if err != nil {
			return nil, err
		}

		metricPageOpen.Set(0)

		return resp, nil
	})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "screenshot", nil, func(ctx context.Context) (any, error) {
		resp, err := s.controller.Screenshot(ctx)
		if err != nil {
			return nil, err
		}

		metricScreenshots.Inc()

		return resp, nil
	})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req entity.ClickRequest

	s.serve(w, r, "click", &req, func(ctx context.Context) (any, error) {
		return s.controller.Click(ctx, req.Selector.String)
	})
}

func (s *Server) handleType(w http.ResponseWriter, r *http.Request) {
	var req entity.TypeRequest

	s.serve(w, r, "type", &req, func(ctx context.Context) (any, error) {
		return s.controller.Type(ctx, req.Selector.String, req.Text.String)
	})
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req entity.ScrollRequest

	s.serve(w, r, "scroll", &req, func(ctx context.Context) (any, error) {
		return s.controller.Scroll(ctx, req.Direction.String, req.Amount.Int64)
	})
}

func (s *Server) handleGetText(w http.ResponseWriter, r *http.Request) {
	var req entity.SelectorRequest

	s.serve(w, r, "get_text", &req, func(ctx context.Context) (any, error) {
		return s.controller.GetText(ctx, req.Selector.String)
	})
}

func (s *Server) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	var req entity.AttributeRequest

	s.serve(w, r, "get_attribute", &req, func(ctx context.Context) (any, error) {
		return s.controller.GetAttribute(ctx, req.Selector.String, req.Attribute.String)
	})
}

func (s *Server) handleExecuteScript(w http.ResponseWriter, r *http.Request) {
	var req entity.ScriptRequest

	s.serve(w, r, "execute_script", &req, func(ctx context.Context) (any, error) {
		return s.controller.ExecuteScript(ctx, req.Script.String)
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req entity.NavigateRequest

	s.serve(w, r, "navigate", &req, func(ctx context.Context) (any, error) {
		return s.controller.Navigate(ctx, req.Direction.String)
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "reload", nil, func(ctx context.Context) (any, error) {
		return s.controller.Reload(ctx)
	})
}

func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	var req entity.SelectorRequest

	s.serve(w, r, "list_elements", &req, func(ctx context.Context) (any, error) {
		return s.controller.ListElements(ctx, req.Selector.String)
	})
}
