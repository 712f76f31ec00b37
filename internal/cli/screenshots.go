package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sweer/internal/entity"

	"github.com/spf13/afero"
)

const (
	latestScreenshot            = "latest_screenshot.png"
	latestScreenshotWithOverlay = "latest_screenshot_with_overlay.png"
	latestOverlayInfo           = "latest_screenshot_overlay.json"
)

// overlayInfoFile is the document stored next to the latest screenshots.
type overlayInfoFile struct {
	ScreenshotIndex int    `json:"screenshot_index"`
	OverlayInfo     string `json:"overlay_info"`
}

// screenshotPaths returns the plain and overlay file names for a capture.
func screenshotPaths(output string, index int) (string, string) {
	if output == "" {
		output = fmt.Sprintf("screenshot_%03d.png", index)
	}

	return output, strings.TrimSuffix(output, ".png") + "_with_overlay.png"
}

func writeImage(fs afero.Fs, path string, encoded string) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode screenshot for %s: %w", path, err)
	}

	if err := afero.WriteFile(fs, path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func removeIfExists(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// pointLatest replaces link with a symlink to target, or with a copy when the
// filesystem cannot link.
func pointLatest(fs afero.Fs, target string, link string) error {
	if err := removeIfExists(fs, link); err != nil {
		return err
	}

	if linker, ok := fs.(afero.Linker); ok {
		if err := linker.SymlinkIfPossible(target, link); err == nil {
			return nil
		}
	}

	raw, err := afero.ReadFile(fs, target)
	if err != nil {
		return fmt.Errorf("read %s: %w", target, err)
	}

	if err := afero.WriteFile(fs, link, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", link, err)
	}

	return nil
}

func cleanupLatest(fs afero.Fs) error {
	for _, path := range []string{latestScreenshot, latestScreenshotWithOverlay, latestOverlayInfo} {
		if err := removeIfExists(fs, path); err != nil {
			return err
		}
	}

	return nil
}

func writeOverlayInfo(fs afero.Fs, resp *entity.ScreenshotResponse) error {
	raw, err := json.MarshalIndent(overlayInfoFile{
		ScreenshotIndex: resp.ScreenshotIndex,
		OverlayInfo:     resp.OverlayInfo,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode overlay info: %w", err)
	}

	if err := afero.WriteFile(fs, latestOverlayInfo, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", latestOverlayInfo, err)
	}

	return nil
}
