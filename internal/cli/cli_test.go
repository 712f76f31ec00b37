package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sweer/internal/browser/browsertest"
	"sweer/internal/client"
	"sweer/internal/config"
	"sweer/internal/entity"
	"sweer/internal/server"
	"sweer/internal/usecase"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	color.NoColor = true

	os.Exit(m.Run())
}

type harness struct {
	app  *App
	fake *browsertest.Fake
	fs   afero.Fs
}

func newHarness(t *testing.T, autoScreenshot bool) *harness {
	t.Helper()

	conf := &config.Config{
		AppConfig:     &config.AppConfig{},
		ServerConfig:  &config.ServerConfig{},
		BrowserConfig: &config.BrowserConfig{LocateElementTimeout: 1, TypeTimeout: 1, OverlayTextLength: 50},
		ClientConfig:  &config.ClientConfig{},
	}

	fake := browsertest.New()
	controller := usecase.NewController(usecase.Params{
		Config:  conf,
		Logger:  zaptest.NewLogger(t),
		Browser: fake,
		Fs:      afero.NewMemMapFs(),
	})

	srv := httptest.NewServer(server.NewServer(server.Params{
		Config:     conf,
		Logger:     zaptest.NewLogger(t),
		Controller: controller,
	}).Handler())
	t.Cleanup(srv.Close)

	fs := afero.NewMemMapFs()

	return &harness{
		app: New(Options{
			Controller:     client.New(srv.URL, 5*time.Second),
			Fs:             fs,
			Logger:         zaptest.NewLogger(t),
			AutoScreenshot: autoScreenshot,
		}),
		fake: fake,
		fs:   fs,
	}
}

func (h *harness) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := h.app.Run(context.Background(), args, &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()

	raw, err := afero.ReadFile(h.fs, path)
	require.NoError(t, err, path)

	return string(raw)
}

func TestCLI_OpenWithAutoScreenshot(t *testing.T) {
	h := newHarness(t, true)

	code, stdout, _ := h.run(t, "open", "https://example.com")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "Opened https://example.com\nScreenshot saved to screenshot_001.png\n", stdout)

	assert.Equal(t, "plain-1", h.read(t, "screenshot_001.png"))
	assert.Equal(t, "plain-1", h.read(t, latestScreenshot))

	code, stdout, _ = h.run(t, "info")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "Current URL: https://example.com\n", stdout, "info never captures")
}

func TestCLI_OpenLocalFile(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, afero.WriteFile(h.fs, "page.html", []byte("<html></html>"), 0o644))

	abs, err := filepath.Abs("page.html")
	require.NoError(t, err)

	code, stdout, _ := h.run(t, "open", "page.html")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "Opened file://"+filepath.ToSlash(abs)+"\n", stdout)
}

func TestCLI_ScreenshotWithOverlay(t *testing.T) {
	h := newHarness(t, false)
	h.fake.Labels = []entity.OverlayEntry{{Label: "1", ID: "RANDOM_ID_9", Type: "button", Text: "Go"}}

	code, _, _ := h.run(t, "open", "https://example.com")
	require.Equal(t, ExitOK, code)

	code, stdout, _ := h.run(t, "screenshot", "-w", "-o", "shot.png")
	require.Equal(t, ExitOK, code)
	assert.Equal(t,
		"Screenshot saved to shot.png\n"+
			"Screenshot with overlay saved to shot_with_overlay.png\n"+
			"\nHere is an overview of all clickable elements:\n"+
			"  1 - type=\"button\" text=\"Go\" \n\n",
		stdout)

	assert.Equal(t, "plain-1", h.read(t, "shot.png"))
	assert.Equal(t, "overlay-2", h.read(t, "shot_with_overlay.png"))
	assert.Equal(t, "overlay-2", h.read(t, latestScreenshotWithOverlay))

	code, _, _ = h.run(t, "screenshot")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "plain-3", h.read(t, "screenshot_002.png"))

	exists, err := afero.Exists(h.fs, latestScreenshotWithOverlay)
	require.NoError(t, err)
	assert.False(t, exists, "a plain capture drops the stale overlay link")
}

func TestCLI_SaveAndCleanupScreenshots(t *testing.T) {
	h := newHarness(t, false)
	h.fake.Labels = []entity.OverlayEntry{{Label: "1", ID: "div1", Type: "div"}}

	code, _, _ := h.run(t, "open", "https://example.com")
	require.Equal(t, ExitOK, code)

	code, _, _ = h.run(t, "save-screenshot", "--with-overlay")
	require.Equal(t, ExitOK, code)

	assert.Equal(t, "plain-1", h.read(t, latestScreenshot))
	assert.Equal(t, "overlay-2", h.read(t, latestScreenshotWithOverlay))

	var info overlayInfoFile
	require.NoError(t, json.Unmarshal([]byte(h.read(t, latestOverlayInfo)), &info))
	assert.Equal(t, 1, info.ScreenshotIndex)
	assert.Equal(t, "  1 - ID=\"div1\" type=\"div\" \n", info.OverlayInfo)

	code, _, _ = h.run(t, "cleanup-screenshots")
	require.Equal(t, ExitOK, code)

	for _, path := range []string{latestScreenshot, latestScreenshotWithOverlay, latestOverlayInfo} {
		exists, err := afero.Exists(h.fs, path)
		require.NoError(t, err)
		assert.False(t, exists, path)
	}

	code, _, _ = h.run(t, "cleanup-screenshots")
	assert.Equal(t, ExitOK, code, "cleanup is idempotent")
}

func TestCLI_ErrorEnvelope(t *testing.T) {
	h := newHarness(t, true)

	code, stdout, _ := h.run(t, "close")
	assert.Equal(t, ExitError, code)
	assert.Equal(t, "Error: No open windows\n", stdout)

	code, stdout, _ = h.run(t, "click", "#submit")
	assert.Equal(t, ExitError, code)
	assert.Equal(t, "Error: Please open a website first.\n", stdout)

	code, stdout, _ = h.run(t, "close")
	assert.Equal(t, ExitOK, code, "a rejected page command still starts the session")
	assert.Equal(t, "Closed browser\n", stdout)
}

func TestCLI_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := srv.URL
	srv.Close()

	app := New(Options{Controller: client.New(addr, time.Second), Fs: afero.NewMemMapFs()})

	var stdout, stderr bytes.Buffer
	code := app.Run(context.Background(), []string{"info"}, &stdout, &stderr)

	assert.Equal(t, ExitTransport, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Internal error communicating with backend")
}

func TestCLI_ArgumentValidation(t *testing.T) {
	h := newHarness(t, false)

	for _, args := range [][]string{
		{"scroll", "diagonal", "10"},
		{"scroll", "down", "ten"},
		{"navigate", "sideways"},
		{"type", "#q"},
	} {
		code, _, stderr := h.run(t, args...)
		assert.Equal(t, ExitError, code, args)
		assert.Contains(t, stderr, "Error:", args)
	}

	assert.Equal(t, 0, h.fake.Launches(), "invalid arguments never reach the server")
}

func TestCLI_Commands(t *testing.T) {
	h := newHarness(t, false)
	h.fake.Elements["#div1"] = browsertest.Element{
		Text:       "Hello",
		Attributes: map[string]string{"class": "foo"},
		HTML:       `<div id="div1" class="foo">Hello</div>`,
	}

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"open", "https://a.example"}, "Opened https://a.example\n"},
		{[]string{"open", "https://b.example"}, "Opened https://b.example\n"},
		{[]string{"click", "#div1"}, "Clicked element #div1\n"},
		{[]string{"type", "#div1", "abc"}, "Typed \"abc\" into #div1\n"},
		{[]string{"scroll", "down", "250"}, "Scrolled down by 250\n"},
		{[]string{"get-text", "#div1"}, "Text of element selected by \"#div1\": \"Hello\"\n"},
		{[]string{"get-attribute", "#div1", "class"}, "Attribute class for the element specified by the CSS selector \"#div1\": \"foo\"\n"},
		{[]string{"execute-script", "return 1"}, "Script executed successfully\n"},
		{[]string{"navigate", "back"}, "Navigated back\n"},
		{[]string{"navigate", "forward"}, "Navigated forward\n"},
		{[]string{"reload"}, "Page reloaded\n"},
		{[]string{"list-elements", "#div1"}, "Found 1 elements\n<div id=\"div1\" class=\"foo\">Hello</div>\n"},
		{[]string{"close"}, "Closed browser\n"},
	}

	for _, step := range steps {
		code, stdout, stderr := h.run(t, step.args...)
		require.Equal(t, ExitOK, code, "%v: %s", step.args, stderr)
		assert.Equal(t, step.want, stdout, step.args)
	}

	exists, err := afero.Exists(h.fs, latestScreenshot)
	require.NoError(t, err)
	assert.False(t, exists, "no screenshots without auto capture")
}

func TestWriteImage_RejectsBadPayload(t *testing.T) {
	fs := afero.NewMemMapFs()

	err := writeImage(fs, "x.png", "not base64!")
	require.Error(t, err)

	require.NoError(t, writeImage(fs, "y.png", base64.StdEncoding.EncodeToString([]byte("png"))))

	raw, err := afero.ReadFile(fs, "y.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(raw))
}
