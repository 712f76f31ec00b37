package bootstrap

import (
	"sweer/internal/browser"
	"sweer/internal/config"
	"sweer/internal/ports"
	"sweer/internal/server"
	"sweer/internal/usecase"
	"time"

	"go.uber.org/fx"
)

func NewApp() *fx.App {
	return fx.New(options())
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewManager, fx.As(new(ports.BrowserManager))),
			fx.Annotate(usecase.NewController, fx.As(new(ports.Controller))),

			server.NewServer,
		),

		fx.Invoke(
			runServer,
		),

		fx.StartTimeout(10*time.Second),
		fx.StopTimeout(30*time.Second),
	)
}
