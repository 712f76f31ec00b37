package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sweer/internal/browser/browsertest"
	"sweer/internal/config"
	"sweer/internal/entity"
	"sweer/internal/ports"
	"sweer/internal/usecase"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig:    &config.AppConfig{LogLevel: "debug"},
		ServerConfig: &config.ServerConfig{BaseURL: "http://localhost:8009", ListenHost: "127.0.0.1"},
		BrowserConfig: &config.BrowserConfig{
			LocateElementTimeout: 1,
			TypeTimeout:          10,
			OverlayTextLength:    50,
		},
		ClientConfig: &config.ClientConfig{},
	}
}

func newTestServer(t *testing.T, controller ports.Controller) http.Handler {
	t.Helper()

	return NewServer(Params{
		Config:     testConfig(),
		Logger:     zaptest.NewLogger(t),
		Controller: controller,
	}).Handler()
}

func newBrowserServer(t *testing.T) (http.Handler, *browsertest.Fake) {
	t.Helper()

	fake := browsertest.New()
	controller := usecase.NewController(usecase.Params{
		Config:  testConfig(),
		Logger:  zaptest.NewLogger(t),
		Browser: fake,
		Fs:      afero.NewMemMapFs(),
	})

	return newTestServer(t, controller), fake
}

func do(t *testing.T, h http.Handler, method string, path string, body string) map[string]any {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	return payload
}

func TestServer_Flow(t *testing.T) {
	h, fake := newBrowserServer(t)
	fake.Elements["#div1"] = browsertest.Element{
		Text:       "Hello",
		Attributes: map[string]string{"class": "foo"},
		HTML:       `<div id="div1" class="foo">Hello</div>`,
	}
	fake.Labels = []entity.OverlayEntry{{Label: "1", ID: "div1", Type: "div", Class: "foo"}}

	payload := do(t, h, http.MethodGet, "/info", "")
	assert.Equal(t, map[string]any{"status": "success", "message": "No website open"}, payload)

	payload = do(t, h, http.MethodPost, "/click", `{"selector":"#div1"}`)
	assert.Equal(t, map[string]any{"status": "error", "message": "Please open a website first."}, payload)

	payload = do(t, h, http.MethodPost, "/open", `{"url":"http://example.com"}`)
	assert.Equal(t, "Opened http://example.com", payload["message"])

	payload = do(t, h, http.MethodGet, "/screenshot", "")
	assert.Equal(t, "success", payload["status"])
	assert.EqualValues(t, 1, payload["screenshot_index"])
	assert.Equal(t, "  1 - ID=\"div1\" type=\"div\" class=\"foo\" \n", payload["overlay_info"])
	assert.NotEmpty(t, payload["screenshot"])
	assert.NotEmpty(t, payload["screenshot_with_overlay"])

	payload = do(t, h, http.MethodPost, "/click", `{"selector":"1"}`)
	assert.Equal(t, "Clicked on element with label 1", payload["message"])

	payload = do(t, h, http.MethodPost, "/get_text", `{"selector":"#div1"}`)
	assert.Equal(t, `Text of element selected by "#div1": "Hello"`, payload["message"])

	payload = do(t, h, http.MethodPost, "/get_attribute", `{"selector":"#div1","attribute":"class"}`)
	assert.Equal(t, `Attribute class for the element specified by the CSS selector "#div1": "foo"`, payload["message"])

	payload = do(t, h, http.MethodPost, "/type", `{"selector":"#div1","text":"abc"}`)
	assert.Equal(t, `Typed "abc" into #div1`, payload["message"])

	payload = do(t, h, http.MethodPost, "/scroll", `{"direction":"down","amount":300}`)
	assert.Equal(t, "Scrolled down by 300", payload["message"])

	payload = do(t, h, http.MethodPost, "/execute_script", `{"script":"return 1"}`)
	assert.Equal(t, "Script executed successfully", payload["message"])

	payload = do(t, h, http.MethodPost, "/list_elements", `{"selector":"#div1"}`)
	assert.Equal(t, "Found 1 elements", payload["message"])
	assert.Equal(t, []any{`<div id="div1" class="foo">Hello</div>`}, payload["elements"])

	payload = do(t, h, http.MethodPost, "/navigate", `{"direction":"back"}`)
	assert.Equal(t, "error", payload["status"])
	assert.Equal(t, "No more pages in history, still at http://example.com.", payload["message"])

	payload = do(t, h, http.MethodPost, "/reload", "")
	assert.Equal(t, "Page reloaded", payload["message"])

	payload = do(t, h, http.MethodPost, "/close", "")
	assert.Equal(t, "Closed browser", payload["message"])

	payload = do(t, h, http.MethodPost, "/close", "")
	assert.Equal(t, map[string]any{"status": "error", "message": "No open windows"}, payload)
}

func TestServer_InvalidRequests(t *testing.T) {
	h, fake := newBrowserServer(t)

	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{name: "missing url", path: "/open", body: `{}`, message: `missing required field "url"`},
		{name: "blank url", path: "/open", body: `{"url":"  "}`, message: `missing required field "url"`},
		{name: "null selector", path: "/click", body: `{"selector":null}`, message: `missing required field "selector"`},
		{name: "missing text", path: "/type", body: `{"selector":"#q"}`, message: `missing required field "text"`},
		{name: "missing amount", path: "/scroll", body: `{"direction":"up"}`, message: `missing required field "amount"`},
		{name: "missing attribute", path: "/get_attribute", body: `{"selector":"a"}`, message: `missing required field "attribute"`},
		{name: "missing script", path: "/execute_script", body: `{}`, message: `missing required field "script"`},
		{name: "missing direction", path: "/navigate", body: `{}`, message: `missing required field "direction"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, map[string]any{"status": "error", "message": tt.message}, payload)
		})
	}

	payload := do(t, h, http.MethodPost, "/open", `{"url":`)
	assert.Equal(t, "error", payload["status"])
	assert.True(t, strings.HasPrefix(payload["message"].(string), "invalid request body"))

	assert.Equal(t, 0, fake.Launches(), "rejected requests never reach the browser")
}

type panickingController struct {
	ports.Controller
}

func (panickingController) Info(ctx context.Context) (*entity.Response, error) {
	panic("boom")
}

func TestServer_RecoversPanics(t *testing.T) {
	h := newTestServer(t, panickingController{})

	payload := do(t, h, http.MethodGet, "/info", "")
	assert.Equal(t, map[string]any{"status": "error", "message": "boom"}, payload)
}

func TestServer_Metrics(t *testing.T) {
	h, _ := newBrowserServer(t)

	do(t, h, http.MethodGet, "/info", "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sweer_operations_total{code="",operation="info",status="success"}`)
}
