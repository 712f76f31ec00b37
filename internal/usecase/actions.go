package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sweer/internal/entity"
	"sweer/internal/overlay"
	"sweer/pkg/apperr"
	"sweer/pkg/fileurl"
	"sweer/pkg/logg"

	"go.uber.org/zap"
)

func (c *Controller) Info(ctx context.Context) (*entity.Response, error) {
	return c.respond(ctx, "Info", guardSession, func(ctx context.Context) (string, error) {
		if !c.browser.IsPageOpen() {
			return "No website open", nil
		}

		return fmt.Sprintf("Current URL: %s", c.browser.CurrentURL()), nil
	})
}

func (c *Controller) Open(ctx context.Context, target string) (*entity.Response, error) {
	const op = "Open"

	return c.respond(ctx, op, guardSession, func(ctx context.Context) (string, error) {
		url := c.resolveURL(target)
		wasOpen := c.browser.IsPageOpen()

		c.sleep(c.config.BrowserConfig.SettleDelay())

		c.logger.Info("Opening page", zap.String(logg.Operation, op), zap.String(logg.URL, url))

		if err := c.browser.Navigate(ctx, url); err != nil {
			if !apperr.Is(err, apperr.CodeNameResolution) {
				return "", err
			}

			if !wasOpen {
				c.resetToBlank(ctx)
			}

			return "", apperr.New(op, apperr.CodeNameResolution, fmt.Sprintf("Could not resolve %s", url), map[string]any{
				apperr.MetaStage: apperr.StageNavigation,
				apperr.MetaURL:   url,
			})
		}

		return fmt.Sprintf("Opened %s", url), nil
	})
}

// resolveURL turns local files into file URLs and defaults to https.
func (c *Controller) resolveURL(target string) string {
	if url, ok := fileurl.FromPath(c.fs, target); ok {
		return url
	}

	if !strings.Contains(target, "://") {
		return "https://" + target
	}

	return target
}

// resetToBlank leaves the page on the sentinel after a failed first open,
// since Chromium otherwise keeps its error page loaded.
func (c *Controller) resetToBlank(ctx context.Context) {
	if c.browser.CurrentURL() == entity.SentinelURL {
		return
	}

	if err := c.browser.Navigate(ctx, entity.SentinelURL); err != nil {
		c.logger.Warn("Failed to reset page after unresolved navigation", zap.Error(err))
	}
}

func (c *Controller) Close(ctx context.Context) (*entity.Response, error) {
	return c.respond(ctx, "Close", guardNone, func(ctx context.Context) (string, error) {
		if err := c.browser.Close(ctx); err != nil {
			return "", err
		}

		c.overlay = nil

		return "Closed browser", nil
	})
}

// Screenshot captures the page twice, without and with the overlay labels.
// The index only advances when the whole capture succeeded.
func (c *Controller) Screenshot(ctx context.Context) (*entity.ScreenshotResponse, error) {
	const op = "Screenshot"

	var resp *entity.ScreenshotResponse

	err := c.exec(ctx, op, guardPage, func(ctx context.Context) error {
		plain, err := c.browser.Screenshot(ctx)
		if err != nil {
			return err
		}

		withOverlay, err := c.captureWithOverlay(ctx)
		if err != nil {
			return err
		}

		c.screenshotIndex++

		resp = &entity.ScreenshotResponse{
			Response:              *entity.Success(fmt.Sprintf("Captured screenshot %d", c.screenshotIndex)),
			Screenshot:            base64.StdEncoding.EncodeToString(plain),
			ScreenshotWithOverlay: base64.StdEncoding.EncodeToString(withOverlay),
			OverlayInfo:           overlay.Format(c.overlay, c.config.BrowserConfig.OverlayTextLength),
			ScreenshotIndex:       c.screenshotIndex,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// captureWithOverlay draws the labels, screenshots, and removes the labels
// again. Removal is attempted whenever drawing was attempted.
func (c *Controller) captureWithOverlay(ctx context.Context) (image []byte, err error) {
	defer func() {
		if derr := c.browser.DeactivateOverlay(ctx); derr != nil {
			if err == nil {
				err = derr

				return
			}

			c.logger.Warn("Failed to remove overlay", zap.Error(derr))
		}
	}()

	entries, err := c.browser.ActivateOverlay(ctx)
	if err != nil {
		return nil, err
	}

	c.overlay = entries

	return c.browser.Screenshot(ctx)
}

func (c *Controller) Click(ctx context.Context, selector string) (*entity.Response, error) {
	const op = "Click"

	return c.respond(ctx, op, guardPage, func(ctx context.Context) (string, error) {
		if overlay.IsLabel(selector) {
			return c.clickLabel(ctx, op, selector)
		}

		return c.clickSelector(ctx, op, selector, "")
	})
}

func (c *Controller) clickLabel(ctx context.Context, op string, label string) (string, error) {
	c.logger.Debug("Resolving overlay label", zap.String(logg.Label, label))

	metadata := map[string]any{
		apperr.MetaStage: apperr.StageOverlay,
		apperr.MetaLabel: label,
	}

	if len(c.overlay) == 0 {
		return "", apperr.New(op, apperr.CodeOverlayLabelNotFound,
			fmt.Sprintf("Overlay with label %s not found. No overlay info is available yet, take a screenshot first to label the clickable elements.", label),
			metadata)
	}

	entry, ok := overlay.Find(c.overlay, label)
	if !ok {
		return "", apperr.New(op, apperr.CodeOverlayLabelNotFound,
			fmt.Sprintf("Overlay with label %s not found. Here are the elements that can be clicked:\n\n%s\nThe first column is the label.",
				label, overlay.Format(c.overlay, c.config.BrowserConfig.OverlayTextLength)),
			metadata)
	}

	return c.clickSelector(ctx, op, entry.Selector(), fmt.Sprintf("Clicked on element with label %s", label))
}

func (c *Controller) clickSelector(ctx context.Context, op string, selector string, confirmation string) (string, error) {
	if err := c.browser.Click(ctx, selector, c.config.BrowserConfig.LocateTimeout()); err != nil {
		if apperr.Is(err, apperr.CodeTimeout) {
			return "", elementNotFound(op, selector,
				fmt.Sprintf("Element specified by the CSS selector %q not found or not clickable", selector))
		}

		return "", err
	}

	if confirmation == "" {
		confirmation = fmt.Sprintf("Clicked element %s", selector)
	}

	return confirmation, nil
}

func (c *Controller) Type(ctx context.Context, selector string, text string) (*entity.Response, error) {
	const op = "Type"

	return c.respond(ctx, op, guardPage, func(ctx context.Context) (string, error) {
		if err := c.browser.TypeText(ctx, selector, text, c.config.BrowserConfig.TypeWait()); err != nil {
			if apperr.Is(err, apperr.CodeTimeout) {
				return "", elementNotFound(op, selector,
					fmt.Sprintf("Element specified by the CSS selector %q not found", selector))
			}

			return "", err
		}

		return fmt.Sprintf("Typed %q into %s", text, selector), nil
	})
}

func (c *Controller) Scroll(ctx context.Context, direction string, amount int64) (*entity.Response, error) {
	const op = "Scroll"

	return c.respond(ctx, op, guardPage, func(ctx context.Context) (string, error) {
		x, y, ok := entity.ScrollDirection(direction).Delta(amount)
		if !ok {
			return "", invalidDirection(op, direction,
				fmt.Sprintf("Invalid direction %s. Use 'up', 'down', 'left' or 'right'.", direction))
		}

		if err := c.browser.Scroll(ctx, x, y); err != nil {
			return "", err
		}

		return fmt.Sprintf("Scrolled %s by %d", direction, amount), nil
	})
}

func (c *Controller) GetText(ctx context.Context, selector string) (*entity.Response, error) {
	const op = "GetText"

	return c.respond(ctx, op, guardPage, func(ctx context.Context) (string, error) {
		text, err := c.browser.InnerText(ctx, selector, c.config.BrowserConfig.LocateTimeout())
		if err != nil {
			if apperr.Is(err, apperr.CodeTimeout) {
				return "", elementNotFound(op, selector,
					fmt.Sprintf("Element specified by the CSS selector %q not found", selector))
			}

			return "", err
		}

		return fmt.Sprintf("Text of element selected by %q: %q", selector, text), nil
	})
}

func (c *Controller) GetAttribute(ctx context.Context, selector string, attribute string) (*entity.Response, error) {
	const op = "GetAttribute"

	return c.respond(ctx, op, guardPage, func(ctx context.Context) (string, error) {
		value, err := c.browser.Attribute(ctx, selector, attribute, c.config.BrowserConfig.LocateTimeout())
		if err != nil {
			if apperr.Is(err, apperr.CodeTimeout) {
				return "", elementNotFound(op, selector,
					fmt.Sprintf("Element specified by the CSS selector %q not found.", selector))
			}

			return "", err
		}

		rendered := "null"
		if value != nil {
			rendered = fmt.Sprintf("%q", *value)
		}

		return fmt.Sprintf("Attribute %s for the element specified by the CSS selector %q: %s", attribute, selector, rendered), nil
	})
}

func (c *Controller) ExecuteScript(ctx context.Context, script string) (*entity.Response, error) {
	return c.respond(ctx, "ExecuteScript", guardPage, func(ctx context.Context) (string, error) {
		if err := c.browser.ExecuteScript(ctx, script); err != nil {
			return "", err
		}

		return "Script executed successfully", nil
	})
}

// Navigate moves through history. Going back from the first loaded page
// either leaves the URL unchanged or lands on the sentinel; the latter is
// undone with a forward step so the session keeps its page.
func (c *Controller) Navigate(ctx context.Context, direction string) (*entity.Response, error) {
	const op = "Navigate"

	return c.respond(ctx, op, guardPage, func(ctx context.Context) (string, error) {
		metadata := map[string]any{
			apperr.MetaStage:     apperr.StageHistory,
			apperr.MetaDirection: direction,
		}

		switch entity.HistoryDirection(direction) {
		case entity.HistoryBack:
			previous := c.browser.CurrentURL()

			if err := c.browser.Back(ctx); err != nil {
				return "", err
			}

			exhausted := c.browser.CurrentURL() == previous

			if !c.browser.IsPageOpen() {
				if err := c.browser.Forward(ctx); err != nil {
					return "", apperr.Wrap(op, apperr.CodeInternal, err, metadata)
				}

				exhausted = true
			}

			if exhausted {
				current := c.browser.CurrentURL()
				metadata[apperr.MetaURL] = current

				return "", apperr.New(op, apperr.CodeHistoryExhausted,
					fmt.Sprintf("No more pages in history, still at %s.", current), metadata)
			}
		case entity.HistoryForward:
			previous := c.browser.CurrentURL()

			if err := c.browser.Forward(ctx); err != nil {
				return "", err
			}

			if current := c.browser.CurrentURL(); current == previous {
				metadata[apperr.MetaURL] = current

				return "", apperr.New(op, apperr.CodeHistoryExhausted,
					fmt.Sprintf("Already at the most recent page (%s).", current), metadata)
			}
		default:
			return "", invalidDirection(op, direction,
				fmt.Sprintf("Invalid direction %s. Use 'back' or 'forward'.", direction))
		}

		return fmt.Sprintf("Navigated %s", direction), nil
	})
}

func (c *Controller) Reload(ctx context.Context) (*entity.Response, error) {
	return c.respond(ctx, "Reload", guardPage, func(ctx context.Context) (string, error) {
		if err := c.browser.Reload(ctx); err != nil {
			return "", err
		}

		return "Page reloaded", nil
	})
}

func (c *Controller) ListElements(ctx context.Context, selector string) (*entity.ElementsResponse, error) {
	const op = "ListElements"

	var resp *entity.ElementsResponse

	err := c.exec(ctx, op, guardPage, func(ctx context.Context) error {
		elements, err := c.browser.OuterHTML(ctx, selector)
		if err != nil {
			return err
		}

		if elements == nil {
			elements = []string{}
		}

		resp = &entity.ElementsResponse{
			Response: *entity.Success(fmt.Sprintf("Found %d elements", len(elements))),
			Elements: elements,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func elementNotFound(op string, selector string, message string) error {
	return apperr.New(op, apperr.CodeElementNotFound, message, map[string]any{
		apperr.MetaStage:    apperr.StageLookup,
		apperr.MetaSelector: selector,
	})
}

func invalidDirection(op string, direction string, message string) error {
	return apperr.New(op, apperr.CodeInvalidDirection, message, map[string]any{
		apperr.MetaDirection: direction,
	})
}
