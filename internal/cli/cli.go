// Package cli is the sweer command line front end. Every command is one
// request to a running server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sweer/internal/client"
	"sweer/internal/config"
	"sweer/internal/entity"
	"sweer/internal/ports"
	"sweer/pkg/fileurl"
	"sweer/pkg/logg"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	ExitOK        = 0
	ExitError     = 1
	ExitTransport = 2
)

type App struct {
	controller     ports.Controller
	fs             afero.Fs
	logger         *zap.Logger
	autoScreenshot bool
}

type Options struct {
	Controller     ports.Controller
	Fs             afero.Fs
	Logger         *zap.Logger
	AutoScreenshot bool
}

func New(opts Options) *App {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &App{
		controller:     opts.Controller,
		fs:             opts.Fs,
		logger:         opts.Logger.With(zap.String(logg.Layer, "CLI")),
		autoScreenshot: opts.AutoScreenshot,
	}
}

// Main wires the app from the environment and runs it with os.Args.
func Main() int {
	conf, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return ExitError
	}

	logger, err := logg.New(conf.AppConfig.LogLevel, conf.AppConfig.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return ExitError
	}
	defer func() { _ = logger.Sync() }()

	app := New(Options{
		Controller:     client.New(conf.ServerConfig.BaseURL, time.Duration(conf.ClientConfig.RequestTimeout)*time.Second),
		Logger:         logger,
		AutoScreenshot: conf.ClientConfig.AutoScreenshot,
	})

	return app.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes one command line and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	cmd := a.Command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var apiErr *client.APIError
	var transportErr *client.TransportError

	switch {
	case errors.As(err, &apiErr):
		color.New(color.FgRed).Fprintf(stdout, "Error: %s\n", apiErr.Message)

		return ExitError
	case errors.As(err, &transportErr):
		a.logger.Debug("Request failed", zap.Error(err))
		color.New(color.FgRed).Fprintf(stderr, "Internal error communicating with backend: %v\n", transportErr.Err)

		return ExitTransport
	default:
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)

		return ExitError
	}
}

func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "sweer",
		Short:         "Remote control for a headless browser",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		a.openCommand(),
		a.closeCommand(),
		a.infoCommand(),
		a.screenshotCommand(),
		a.saveScreenshotCommand(),
		a.cleanupScreenshotsCommand(),
		a.clickCommand(),
		a.typeCommand(),
		a.scrollCommand(),
		a.getTextCommand(),
		a.getAttributeCommand(),
		a.executeScriptCommand(),
		a.navigateCommand(),
		a.reloadCommand(),
		a.listElementsCommand(),
	)

	return root
}

// printMessage prints the envelope message and, for mutating commands,
// captures a screenshot when auto capture is on.
func (a *App) printMessage(cmd *cobra.Command, resp *entity.Response, mutating bool) error {
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)

	if mutating && a.autoScreenshot {
		return a.screenshot(cmd, "", false)
	}

	return nil
}

func (a *App) screenshot(cmd *cobra.Command, output string, withOverlay bool) error {
	resp, err := a.controller.Screenshot(cmd.Context())
	if err != nil {
		return err
	}

	path, overlayPath := screenshotPaths(output, resp.ScreenshotIndex)

	if err := writeImage(a.fs, path, resp.Screenshot); err != nil {
		return err
	}

	if withOverlay {
		if err := writeImage(a.fs, overlayPath, resp.ScreenshotWithOverlay); err != nil {
			return err
		}
	}

	if err := pointLatest(a.fs, path, latestScreenshot); err != nil {
		return err
	}

	if err := removeIfExists(a.fs, latestScreenshotWithOverlay); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Screenshot saved to %s\n", path)

	if !withOverlay {
		return nil
	}

	if err := pointLatest(a.fs, overlayPath, latestScreenshotWithOverlay); err != nil {
		return err
	}

	fmt.Fprintf(out, "Screenshot with overlay saved to %s\n", overlayPath)

	if resp.OverlayInfo != "" {
		fmt.Fprintf(out, "\nHere is an overview of all clickable elements:\n%s\n", resp.OverlayInfo)
	}

	return nil
}

func (a *App) saveScreenshot(cmd *cobra.Command, withOverlay bool) error {
	resp, err := a.controller.Screenshot(cmd.Context())
	if err != nil {
		return err
	}

	if err := cleanupLatest(a.fs); err != nil {
		return err
	}

	if err := writeImage(a.fs, latestScreenshot, resp.Screenshot); err != nil {
		return err
	}

	if !withOverlay {
		return nil
	}

	if err := writeImage(a.fs, latestScreenshotWithOverlay, resp.ScreenshotWithOverlay); err != nil {
		return err
	}

	return writeOverlayInfo(a.fs, resp)
}

func (a *App) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open URL",
		Short: "Open a website URL or a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			if url, ok := fileurl.FromPath(a.fs, target); ok {
				target = url
			}

			resp, err := a.controller.Open(cmd.Context(), target)
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, true)
		},
	}
}

func (a *App) closeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the browser session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.Close(cmd.Context())
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, false)
		},
	}
}

func (a *App) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the current page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.Info(cmd.Context())
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, false)
		},
	}
}

func (a *App) screenshotCommand() *cobra.Command {
	var (
		output      string
		withOverlay bool
	)

	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Take a screenshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.screenshot(cmd, output, withOverlay)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path for the screenshot")
	cmd.Flags().BoolVarP(&withOverlay, "with-overlay", "w", false, "also save the screenshot with overlay labels")

	return cmd
}

func (a *App) saveScreenshotCommand() *cobra.Command {
	var withOverlay bool

	cmd := &cobra.Command{
		Use:   "save-screenshot",
		Short: "Save the latest screenshot files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.saveScreenshot(cmd, withOverlay)
		},
	}

	cmd.Flags().BoolVarP(&withOverlay, "with-overlay", "w", false, "also save the overlay screenshot and labels")

	return cmd
}

func (a *App) cleanupScreenshotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-screenshots",
		Short: "Remove the latest screenshot files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cleanupLatest(a.fs)
		},
	}
}

func (a *App) clickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "click SELECTOR",
		Short: "Click an element by CSS selector or overlay label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.Click(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, true)
		},
	}
}

func (a *App) typeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "type SELECTOR TEXT",
		Short: "Type text into an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.Type(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, true)
		},
	}
}

func (a *App) scrollCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "scroll up|down|left|right AMOUNT",
		Short:     "Scroll the page by AMOUNT pixels",
		ValidArgs: []string{"up", "down", "left", "right"},
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return err
			}

			if _, _, ok := entity.ScrollDirection(args[0]).Delta(0); !ok {
				return fmt.Errorf("invalid direction %q, use up, down, left or right", args[0])
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			resp, err := a.controller.Scroll(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, true)
		},
	}
}

func (a *App) getTextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-text SELECTOR",
		Short: "Print the rendered text of an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.GetText(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, false)
		},
	}
}

func (a *App) getAttributeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-attribute SELECTOR ATTRIBUTE",
		Short: "Print an attribute of an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.GetAttribute(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, false)
		},
	}
}

func (a *App) executeScriptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "execute-script SCRIPT",
		Short: "Run JavaScript in the page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.ExecuteScript(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, true)
		},
	}
}

func (a *App) navigateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "navigate back|forward",
		Short:     "Move through the browser history",
		ValidArgs: []string{string(entity.HistoryBack), string(entity.HistoryForward)},
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}

			return cobra.OnlyValidArgs(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.Navigate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, true)
		},
	}
}

func (a *App) reloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the current page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.Reload(cmd.Context())
			if err != nil {
				return err
			}

			return a.printMessage(cmd, resp, true)
		},
	}
}

func (a *App) listElementsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-elements SELECTOR",
		Short: "Print the HTML of every element matching SELECTOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.controller.ListElements(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d elements\n", len(resp.Elements))

			for _, element := range resp.Elements {
				fmt.Fprintln(out, element)
			}

			return nil
		},
	}
}

func parseAmount(raw string) (int64, error) {
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	return amount, nil
}
