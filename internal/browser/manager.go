package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sweer/internal/config"
	"sweer/internal/entity"
	"sweer/pkg/apperr"
	"sweer/pkg/logg"
	"sweer/pkg/tracing"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	browserManagerName = "BrowserManager"
	browserTracer      = "browser.manager"
	launchKey          = "launch"
	nameNotResolved    = "net::ERR_NAME_NOT_RESOLVED"
)

var launchArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
}

type Manager struct {
	config   *config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	launches singleflight.Group

	mu             sync.Mutex
	playwright     *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
	sessionID      string
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, browserManagerName)),
		tracer: otel.Tracer(browserTracer),
	}
}

// Ensure launches the browser unless a session is already live.
// Concurrent callers share a single launch.
func (m *Manager) Ensure(ctx context.Context) error {
	if m.activePage() != nil {
		return nil
	}

	_, err, _ := m.launches.Do(launchKey, func() (any, error) {
		if m.activePage() != nil {
			return nil, nil
		}

		return nil, m.launch(ctx)
	})

	return err
}

func (m *Manager) launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	pw, err := m.driver(step)
	if err != nil {
		return err
	}

	step.AddEvent("launching chromium")

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.config.BrowserConfig.Headless),
		Args:     launchArgs,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  m.config.BrowserConfig.ViewportWidth,
			Height: m.config.BrowserConfig.ViewportHeight,
		},
	})
	if err != nil {
		_ = browser.Close()

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "context_create_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browserContext.Close()
		_ = browser.Close()

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}

	page.SetDefaultNavigationTimeout(float64(m.config.BrowserConfig.NavigationTimeout().Milliseconds()))

	sessionID := uuid.NewString()

	m.mu.Lock()
	m.browser = browser
	m.browserContext = browserContext
	m.page = page
	m.sessionID = sessionID
	m.mu.Unlock()

	step.SetAttributes(attribute.String(logg.SessionID, sessionID))
	logger.Info("Browser session started", zap.String(logg.SessionID, sessionID))

	return nil
}

// driver starts the playwright driver once per process; sessions reuse it.
func (m *Manager) driver(step *tracing.Span) (*playwright.Playwright, error) {
	const op = "driver"

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playwright != nil {
		return m.playwright, nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if m.config.BrowserConfig.InstallDriver {
		step.AddEvent("installing playwright")

		if err := playwright.Install(opts); err != nil {
			return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "playwright_install_failed",
				apperr.MetaStage:  apperr.StageSession,
			})
		}
	}

	step.AddEvent("starting playwright")

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageSession,
		})
	}

	m.playwright = pw

	return pw, nil
}

func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page == nil {
		return apperr.New(op, apperr.CodeNoSession, "No open windows", map[string]any{
			apperr.MetaStage: apperr.StageSession,
		})
	}

	m.closeSessionLocked(logger)

	return nil
}

// Shutdown closes any session and stops the driver process.
func (m *Manager) Shutdown(ctx context.Context) (err error) {
	const op = "Shutdown"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		m.closeSessionLocked(logger)
	}

	if m.playwright == nil {
		return nil
	}

	pw := m.playwright
	m.playwright = nil

	if err := pw.Stop(); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_stop_failed",
		})
	}

	logger.Info("Playwright driver stopped")

	return nil
}

func (m *Manager) closeSessionLocked(logger *zap.Logger) {
	if err := m.browserContext.Close(); err != nil {
		logger.Warn("Failed to close context", zap.Error(err))
	}

	if err := m.browser.Close(); err != nil {
		logger.Warn("Failed to close browser", zap.Error(err))
	}

	logger.Info("Browser session closed", zap.String(logg.SessionID, m.sessionID))

	m.page = nil
	m.browserContext = nil
	m.browser = nil
	m.sessionID = ""
}

func (m *Manager) activePage() playwright.Page {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.page
}

func (m *Manager) currentPage(op string) (playwright.Page, error) {
	page := m.activePage()
	if page == nil {
		return nil, apperr.New(op, apperr.CodeNoSession, "No open windows", map[string]any{
			apperr.MetaStage: apperr.StageSession,
		})
	}

	return page, nil
}

func (m *Manager) IsPageOpen() bool {
	page := m.activePage()

	return page != nil && page.URL() != entity.SentinelURL
}

func (m *Manager) CurrentURL() string {
	page := m.activePage()
	if page == nil {
		return entity.SentinelURL
	}

	return page.URL()
}

func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessionID
}

func (m *Manager) Navigate(ctx context.Context, url string) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return err
	}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return driverError(op, err, map[string]any{
			apperr.MetaStage: apperr.StageNavigation,
			apperr.MetaURL:   url,
		})
	}

	step.AddEvent("navigation completed")

	return nil
}

func (m *Manager) Back(ctx context.Context) (err error) {
	const op = "Back"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return err
	}

	if _, err = page.GoBack(); err != nil {
		return driverError(op, err, map[string]any{apperr.MetaStage: apperr.StageHistory})
	}

	return nil
}

func (m *Manager) Forward(ctx context.Context) (err error) {
	const op = "Forward"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return err
	}

	if _, err = page.GoForward(); err != nil {
		return driverError(op, err, map[string]any{apperr.MetaStage: apperr.StageHistory})
	}

	return nil
}

func (m *Manager) Reload(ctx context.Context) (err error) {
	const op = "Reload"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return err
	}

	if _, err = page.Reload(); err != nil {
		return driverError(op, err, map[string]any{apperr.MetaStage: apperr.StageNavigation})
	}

	return nil
}

// waitFor is the bounded wait shared by every element lookup.
func (m *Manager) waitFor(op string, selector string, state *playwright.WaitForSelectorState, timeout time.Duration) (playwright.ElementHandle, error) {
	page, err := m.currentPage(op)
	if err != nil {
		return nil, err
	}

	handle, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   state,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, driverError(op, err, map[string]any{
			apperr.MetaStage:    apperr.StageLookup,
			apperr.MetaSelector: selector,
		})
	}

	if handle == nil {
		return nil, apperr.New(op, apperr.CodeTimeout, fmt.Sprintf("no element matches %s", selector), map[string]any{
			apperr.MetaSelector: selector,
		})
	}

	return handle, nil
}

// Click waits for the element to become visible, then clicks it. Both the
// wait and the click's own actionability checks share the timeout.
func (m *Manager) Click(ctx context.Context, selector string, timeout time.Duration) (err error) {
	const op = "Click"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	handle, err := m.waitFor(op, selector, playwright.WaitForSelectorStateVisible, timeout)
	if err != nil {
		return err
	}
	defer handle.Dispose()

	step.AddEvent("element visible")

	err = handle.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return driverError(op, err, map[string]any{
			apperr.MetaStage:    apperr.StageLookup,
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (m *Manager) TypeText(ctx context.Context, selector string, text string, timeout time.Duration) (err error) {
	const op = "TypeText"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	handle, err := m.waitFor(op, selector, playwright.WaitForSelectorStateAttached, timeout)
	if err != nil {
		return err
	}
	defer handle.Dispose()

	if err = handle.Type(text); err != nil {
		return driverError(op, err, map[string]any{apperr.MetaSelector: selector})
	}

	return nil
}

func (m *Manager) InnerText(ctx context.Context, selector string, timeout time.Duration) (text string, err error) {
	const op = "InnerText"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	handle, err := m.waitFor(op, selector, playwright.WaitForSelectorStateAttached, timeout)
	if err != nil {
		return "", err
	}
	defer handle.Dispose()

	text, err = handle.InnerText()
	if err != nil {
		return "", driverError(op, err, map[string]any{apperr.MetaSelector: selector})
	}

	return text, nil
}

// Attribute returns nil when the element has no such attribute.
func (m *Manager) Attribute(ctx context.Context, selector string, name string, timeout time.Duration) (value *string, err error) {
	const op = "Attribute"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.String("selector", selector),
		attribute.String("attribute", name))
	defer func() {
		step.End(err)
	}()

	handle, err := m.waitFor(op, selector, playwright.WaitForSelectorStateAttached, timeout)
	if err != nil {
		return nil, err
	}
	defer handle.Dispose()

	result, err := handle.Evaluate(`(el, name) => el.getAttribute(name)`, name)
	if err != nil {
		return nil, driverError(op, err, map[string]any{apperr.MetaSelector: selector})
	}

	if s, ok := result.(string); ok {
		return &s, nil
	}

	return nil, nil
}

func (m *Manager) OuterHTML(ctx context.Context, selector string) (elements []string, err error) {
	const op = "OuterHTML"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return nil, err
	}

	result, err := page.Locator(selector).EvaluateAll(`(els) => els.map((el) => el.outerHTML)`)
	if err != nil {
		return nil, driverError(op, err, map[string]any{apperr.MetaSelector: selector})
	}

	list, ok := result.([]interface{})
	if !ok {
		return nil, apperr.WrapWithReason(op, apperr.CodeInternal,
			fmt.Errorf("unexpected result type %T", result), "unexpected_result_type")
	}

	elements = make([]string, 0, len(list))
	for _, item := range list {
		if html, ok := item.(string); ok {
			elements = append(elements, html)
		}
	}

	step.SetAttributes(attribute.Int("count", len(elements)))

	return elements, nil
}

func (m *Manager) Scroll(ctx context.Context, x int64, y int64) (err error) {
	const op = "Scroll"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.Int64("x", x),
		attribute.Int64("y", y))
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return err
	}

	if _, err = page.Evaluate(`([x, y]) => window.scrollBy(x, y)`, []int64{x, y}); err != nil {
		return driverError(op, err, nil)
	}

	return nil
}

// ExecuteScript runs script as a function body, so a bare return is allowed.
func (m *Manager) ExecuteScript(ctx context.Context, script string) (err error) {
	const op = "ExecuteScript"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return err
	}

	if _, err = page.Evaluate("() => {\n" + script + "\n}"); err != nil {
		return driverError(op, err, map[string]any{apperr.MetaStage: apperr.StageScript})
	}

	return nil
}

func (m *Manager) Screenshot(ctx context.Context) (image []byte, err error) {
	const op = "Screenshot"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return nil, err
	}

	image, err = page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, driverError(op, err, map[string]any{apperr.MetaStage: apperr.StageScreenshot})
	}

	return image, nil
}

// ActivateOverlay labels every interactive element and returns the labels.
func (m *Manager) ActivateOverlay(ctx context.Context) (entries []entity.OverlayEntry, err error) {
	const op = "ActivateOverlay"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return nil, err
	}

	if _, err = page.Evaluate(overlayInstallScript(), entity.SyntheticIDPrefix); err != nil {
		return nil, driverError(op, err, map[string]any{
			apperr.MetaReason: "overlay_install_failed",
			apperr.MetaStage:  apperr.StageOverlay,
		})
	}

	result, err := page.Evaluate(overlayDrawScript())
	if err != nil {
		return nil, driverError(op, err, map[string]any{
			apperr.MetaReason: "overlay_draw_failed",
			apperr.MetaStage:  apperr.StageOverlay,
		})
	}

	items, ok := result.([]interface{})
	if !ok {
		return nil, apperr.WrapWithReason(op, apperr.CodeInternal,
			fmt.Errorf("unexpected overlay result type %T", result), "unexpected_result_type")
	}

	entries = make([]entity.OverlayEntry, 0, len(items))

	for _, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		entries = append(entries, entity.OverlayEntry{
			Label:     getString(fields, "label"),
			ID:        getString(fields, "id"),
			Type:      getString(fields, "type"),
			Class:     getString(fields, "class"),
			Text:      getString(fields, "text"),
			AriaLabel: getString(fields, "ariaLabel"),
		})
	}

	step.SetAttributes(attribute.Int("labels", len(entries)))
	logger.Debug("Overlay drawn", zap.Int("labels", len(entries)))

	return entries, nil
}

func (m *Manager) DeactivateOverlay(ctx context.Context) (err error) {
	const op = "DeactivateOverlay"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	page, err := m.currentPage(op)
	if err != nil {
		return err
	}

	if _, err = page.Evaluate(overlayRemoveScript()); err != nil {
		return driverError(op, err, map[string]any{apperr.MetaStage: apperr.StageOverlay})
	}

	return nil
}

// driverError classifies a playwright failure. The driver message is kept
// as the innermost error so it reaches the caller verbatim.
func driverError(op string, err error, metadata map[string]any) error {
	code := apperr.CodeInternal

	switch {
	case errors.Is(err, playwright.ErrTimeout):
		code = apperr.CodeTimeout
	case strings.Contains(err.Error(), nameNotResolved):
		code = apperr.CodeNameResolution
	}

	return apperr.Wrap(op, code, err, metadata)
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}
