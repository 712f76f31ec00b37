package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sweer/internal/config"
	"sweer/internal/entity"
	"sweer/pkg/apperr"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	return NewManager(Params{
		Config: &config.Config{
			AppConfig:     &config.AppConfig{},
			BrowserConfig: &config.BrowserConfig{Headless: true},
		},
		Logger: zaptest.NewLogger(t),
	})
}

func TestManager_WithoutSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	assert.False(t, m.IsPageOpen())
	assert.Equal(t, entity.SentinelURL, m.CurrentURL())
	assert.Empty(t, m.SessionID())

	err := m.Close(ctx)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNoSession))
	assert.Equal(t, "No open windows", apperr.Message(err))

	_, err = m.Screenshot(ctx)
	assert.True(t, apperr.Is(err, apperr.CodeNoSession))

	err = m.Click(ctx, "#a", time.Second)
	assert.True(t, apperr.Is(err, apperr.CodeNoSession))

	require.NoError(t, m.Shutdown(ctx), "shutdown without a driver is a no-op")
}

func TestDriverError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{
			name: "timeout",
			err:  fmt.Errorf("%w: Timeout 1000ms exceeded.", playwright.ErrTimeout),
			code: apperr.CodeTimeout,
		},
		{
			name: "name resolution",
			err:  errors.New("net::ERR_NAME_NOT_RESOLVED at https://doesnotexist/"),
			code: apperr.CodeNameResolution,
		},
		{
			name: "other",
			err:  errors.New("ReferenceError: foo is not defined"),
			code: apperr.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := driverError("Op", tt.err, nil)

			assert.Equal(t, tt.code, apperr.CodeOf(err))
			assert.Equal(t, tt.err.Error(), apperr.Message(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestOverlayScripts(t *testing.T) {
	install := overlayInstallScript()

	assert.True(t, strings.HasPrefix(install, "(prefix) =>"))
	assert.Contains(t, install, "window."+overlayGlobal+" = { draw, remove }")
	assert.Contains(t, install, "while (document.getElementById(candidate))")

	assert.Equal(t, "() => window."+overlayGlobal+".draw()", overlayDrawScript())
	assert.Contains(t, overlayRemoveScript(), overlayGlobal+".remove()")
}

func TestGetString(t *testing.T) {
	fields := map[string]interface{}{"id": "div1", "label": 1}

	assert.Equal(t, "div1", getString(fields, "id"))
	assert.Empty(t, getString(fields, "label"))
	assert.Empty(t, getString(fields, "missing"))
}
