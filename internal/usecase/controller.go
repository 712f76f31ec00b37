package usecase

import (
	"context"
	"fmt"
	"sweer/internal/config"
	"sweer/internal/entity"
	"sweer/internal/ports"
	"sweer/pkg/apperr"
	"sweer/pkg/logg"
	"sweer/pkg/tracing"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	controllerName   = "Controller"
	controllerTracer = "usecase.controller"

	msgOpenWebsiteFirst = "Please open a website first."
)

// guard selects the preconditions checked before an operation body runs.
type guard int

const (
	// guardNone runs without touching the session (close).
	guardNone guard = iota
	// guardSession creates the session when there is none.
	guardSession
	// guardPage additionally requires a loaded page.
	guardPage
)

// Controller executes browser operations one at a time. It owns the state
// that outlives a single request: the overlay labels from the last capture
// and the screenshot counter.
type Controller struct {
	config  *config.Config
	logger  *zap.Logger
	tracer  trace.Tracer
	browser ports.BrowserManager
	fs      afero.Fs
	sleep   func(time.Duration)

	mu              sync.Mutex
	overlay         []entity.OverlayEntry
	screenshotIndex int
}

type Params struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Browser ports.BrowserManager
	Fs      afero.Fs `optional:"true"`
}

func NewController(params Params) *Controller {
	fs := params.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Controller{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, controllerName)),
		tracer:  otel.Tracer(controllerTracer),
		browser: params.Browser,
		fs:      fs,
		sleep:   time.Sleep,
	}
}

// exec holds the controller lock for the whole operation, applies the guard
// and converts a panic in fn into an internal error.
func (c *Controller) exec(ctx context.Context, op string, g guard, fn func(ctx context.Context) error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Operation panicked", zap.Any("panic", r))

			err = apperr.Wrap(op, apperr.CodeInternal, fmt.Errorf("%v", r), map[string]any{
				apperr.MetaReason: "panic",
			})
		}
	}()

	if g >= guardSession {
		if err := c.browser.Ensure(ctx); err != nil {
			logger.Error("Failed to start browser session", zap.Error(err))

			return err
		}

		sessionID := c.browser.SessionID()
		step.SetAttributes(attribute.String(logg.SessionID, sessionID))
		logger.Debug("Session ready", zap.String(logg.SessionID, sessionID))
	}

	if g == guardPage && !c.browser.IsPageOpen() {
		return apperr.New(op, apperr.CodeNoPageOpen, msgOpenWebsiteFirst, nil)
	}

	return fn(ctx)
}

// respond runs fn through exec and wraps its message in a success envelope.
func (c *Controller) respond(ctx context.Context, op string, g guard, fn func(ctx context.Context) (string, error)) (*entity.Response, error) {
	var message string

	err := c.exec(ctx, op, g, func(ctx context.Context) error {
		var err error
		message, err = fn(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	return entity.Success(message), nil
}

// OverlayEntries returns a copy of the labels from the last capture.
func (c *Controller) OverlayEntries() []entity.OverlayEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]entity.OverlayEntry(nil), c.overlay...)
}

func (c *Controller) ScreenshotIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.screenshotIndex
}
