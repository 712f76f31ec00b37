package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sweer/internal/config"
	"sweer/internal/ports"
	"sweer/internal/server"
	"sweer/pkg/logg"
	"time"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// runServer binds the API on start. The browser is launched lazily by the
// first request and shut down after the listener is closed.
func runServer(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	conf *config.Config,
	srv *server.Server,
	browser ports.BrowserManager,
	logger *zap.Logger,
	_ *trace.TracerProvider,
) {
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr, err := conf.ServerConfig.ListenAddr()
			if err != nil {
				return err
			}

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				logger.Error("Failed to bind", zap.String(logg.Addr, addr), zap.Error(err))

				return err
			}

			logger.Info("Starting sweer server", zap.String(logg.Addr, listener.Addr().String()))

			go func() {
				if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server error", zap.Error(err))

					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down sweer server...")

			shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(conf.ServerConfig.ShutdownTimeout)*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to stop HTTP server", zap.Error(err))
			}

			if err := browser.Shutdown(ctx); err != nil {
				logger.Error("Failed to close browser", zap.Error(err))
			}

			return nil
		},
	})
}
