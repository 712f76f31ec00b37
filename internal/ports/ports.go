package ports

import (
	"context"
	"sweer/internal/entity"
	"time"
)

// BrowserManager owns the single browser session and talks to the driver.
type BrowserManager interface {
	Ensure(ctx context.Context) error
	Close(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IsPageOpen() bool
	CurrentURL() string
	SessionID() string

	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error

	Click(ctx context.Context, selector string, timeout time.Duration) error
	TypeText(ctx context.Context, selector string, text string, timeout time.Duration) error
	InnerText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Attribute(ctx context.Context, selector string, name string, timeout time.Duration) (*string, error)
	OuterHTML(ctx context.Context, selector string) ([]string, error)
	Scroll(ctx context.Context, x int64, y int64) error
	ExecuteScript(ctx context.Context, script string) error
	Screenshot(ctx context.Context) ([]byte, error)

	ActivateOverlay(ctx context.Context) ([]entity.OverlayEntry, error)
	DeactivateOverlay(ctx context.Context) error
}

// Controller is the action executor exposed to the transport layer.
type Controller interface {
	Info(ctx context.Context) (*entity.Response, error)
	Open(ctx context.Context, url string) (*entity.Response, error)
	Close(ctx context.Context) (*entity.Response, error)
	Screenshot(ctx context.Context) (*entity.ScreenshotResponse, error)
	Click(ctx context.Context, selector string) (*entity.Response, error)
	Type(ctx context.Context, selector string, text string) (*entity.Response, error)
	Scroll(ctx context.Context, direction string, amount int64) (*entity.Response, error)
	GetText(ctx context.Context, selector string) (*entity.Response, error)
	GetAttribute(ctx context.Context, selector string, attribute string) (*entity.Response, error)
	ExecuteScript(ctx context.Context, script string) (*entity.Response, error)
	Navigate(ctx context.Context, direction string) (*entity.Response, error)
	Reload(ctx context.Context) (*entity.Response, error)
	ListElements(ctx context.Context, selector string) (*entity.ElementsResponse, error)
}
