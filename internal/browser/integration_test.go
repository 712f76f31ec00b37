package browser_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sweer/internal/browser"
	"sweer/internal/config"
	"sweer/internal/entity"
	"sweer/internal/usecase"
	"sweer/pkg/apperr"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func integrationConfig() *config.Config {
	return &config.Config{
		AppConfig:    &config.AppConfig{LogLevel: "debug"},
		ServerConfig: &config.ServerConfig{BaseURL: "http://localhost:8009"},
		BrowserConfig: &config.BrowserConfig{
			Headless:             true,
			InstallDriver:        os.Getenv("SWEER_INSTALL_DRIVER") != "false",
			LocateElementTimeout: 1,
			TypeTimeout:          2,
			SettleDelayMs:        50,
			NavigationTimeoutMs:  30000,
			OverlayTextLength:    50,
			ViewportWidth:        1280,
			ViewportHeight:       720,
		},
		ClientConfig: &config.ClientConfig{},
	}
}

func newLiveController(t *testing.T) (*usecase.Controller, *browser.Manager) {
	t.Helper()

	if testing.Short() || os.Getenv("SWEER_INTEGRATION") != "1" {
		t.Skip("set SWEER_INTEGRATION=1 to run tests against a real Chromium")
	}

	conf := integrationConfig()
	logger := zaptest.NewLogger(t)

	manager := browser.NewManager(browser.Params{Config: conf, Logger: logger})
	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
	})

	controller := usecase.NewController(usecase.Params{
		Config:  conf,
		Logger:  logger,
		Browser: manager,
	})

	return controller, manager
}

func fixture(t *testing.T, name string) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	return path
}

func TestIntegration_OverlayScenario(t *testing.T) {
	ctrl, manager := newLiveController(t)
	ctx := context.Background()

	assert.False(t, manager.IsPageOpen())

	resp, err := ctrl.Open(ctx, fixture(t, "index.html"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Message, "Opened file://"))
	assert.True(t, manager.IsPageOpen())

	shot, err := ctrl.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, shot.ScreenshotIndex)
	assert.NotEmpty(t, shot.Screenshot)
	assert.NotEmpty(t, shot.ScreenshotWithOverlay)

	entries := ctrl.OverlayEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].Label)
	assert.Equal(t, "button", entries[0].Type)
	assert.True(t, entries[0].HasSyntheticID(), entries[0].ID)
	assert.Contains(t, shot.OverlayInfo, `  1 - type="button" text="Press me"`)

	list, err := ctrl.ListElements(ctx, entries[0].Selector())
	require.NoError(t, err)
	assert.Len(t, list.Elements, 1, "synthetic ids are unique in the document")

	list, err = ctrl.ListElements(ctx, "[data-sweer-overlay]")
	require.NoError(t, err)
	assert.Empty(t, list.Elements, "markers are removed after capture")

	resp, err = ctrl.Click(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Clicked on element with label 1", resp.Message)

	resp, err = ctrl.GetText(ctx, "#div1")
	require.NoError(t, err)
	assert.Equal(t, `Text of element selected by "#div1": "clicked"`, resp.Message)

	_, err = ctrl.Click(ctx, "2")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeOverlayLabelNotFound))
	assert.Contains(t, apperr.Message(err), "  1 - ")

	resp, err = ctrl.GetAttribute(ctx, "#div1", "class")
	require.NoError(t, err)
	assert.Equal(t, `Attribute class for the element specified by the CSS selector "#div1": "foo"`, resp.Message)

	_, err = ctrl.GetAttribute(ctx, "#div10", "class")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeElementNotFound))

	shot, err = ctrl.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, shot.ScreenshotIndex)
}

func TestIntegration_Actions(t *testing.T) {
	ctrl, _ := newLiveController(t)
	ctx := context.Background()

	_, err := ctrl.Open(ctx, fixture(t, "index.html"))
	require.NoError(t, err)

	for _, direction := range []string{"down", "up", "left", "right"} {
		_, err = ctrl.Scroll(ctx, direction, 1)
		require.NoError(t, err, direction)
	}

	_, err = ctrl.ExecuteScript(ctx, "")
	require.NoError(t, err)

	_, err = ctrl.ExecuteScript(ctx, "document.getElementById('div1').setAttribute('title', 'set')")
	require.NoError(t, err)

	resp, err := ctrl.GetAttribute(ctx, "#div1", "title")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Message, `: "set"`))

	resp, err = ctrl.GetAttribute(ctx, "#div1", "data-missing")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Message, ": null"))

	_, err = ctrl.ExecuteScript(ctx, "throw new Error('boom')")
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "boom")

	_, err = ctrl.Reload(ctx)
	require.NoError(t, err)

	_, err = ctrl.Click(ctx, "#nothing-here")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeElementNotFound))
}

func TestIntegration_History(t *testing.T) {
	ctrl, manager := newLiveController(t)
	ctx := context.Background()

	first := fixture(t, "index.html")
	second := fixture(t, "second.html")

	_, err := ctrl.Open(ctx, first)
	require.NoError(t, err)

	_, err = ctrl.Navigate(ctx, "forward")
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "Already at the most recent")

	_, err = ctrl.Navigate(ctx, "back")
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "No more pages in history")
	assert.True(t, manager.IsPageOpen())
	assert.True(t, strings.HasSuffix(manager.CurrentURL(), "/index.html"))

	_, err = ctrl.Open(ctx, second)
	require.NoError(t, err)

	resp, err := ctrl.Type(ctx, "#query", "hello")
	require.NoError(t, err)
	assert.Equal(t, `Typed "hello" into #query`, resp.Message)

	_, err = ctrl.Navigate(ctx, "back")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(manager.CurrentURL(), "/index.html"))

	_, err = ctrl.Navigate(ctx, "forward")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(manager.CurrentURL(), "/second.html"))

	resp, err = ctrl.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Closed browser", resp.Message)
	assert.False(t, manager.IsPageOpen())

	resp, err = ctrl.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "No website open", resp.Message, "info starts a fresh session")
}

func TestIntegration_UnresolvableHost(t *testing.T) {
	ctrl, manager := newLiveController(t)
	ctx := context.Background()

	_, err := ctrl.Open(ctx, "doesnotexist.invalid")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNameResolution))
	assert.False(t, manager.IsPageOpen())
	assert.Equal(t, entity.SentinelURL, manager.CurrentURL())
}
