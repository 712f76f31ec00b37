// Package browsertest provides an in-memory BrowserManager for tests.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"sweer/internal/entity"
	"sweer/pkg/apperr"
	"sync"
	"time"
)

const chromeErrorURL = "chrome-error://chromewebdata/"

// Element is a fake DOM node addressed by its selector.
type Element struct {
	Text       string
	Attributes map[string]string
	HTML       string
	Hidden     bool
}

// Fake mimics a single Chromium tab with a linear history. The zero value
// is not usable, use New.
type Fake struct {
	mu sync.Mutex

	launched  int
	sessionID string
	history   []string
	position  int

	// Elements maps a CSS selector to the node it matches.
	Elements map[string]Element
	// Unresolvable hosts fail navigation with a name resolution error.
	Unresolvable map[string]bool
	// Labels is what the next overlay activation returns.
	Labels []entity.OverlayEntry
	// Failures injects an error for the named method.
	Failures map[string]error
	// Delay is slept inside every screenshot, to widen race windows.
	Delay time.Duration

	Clicks        []string
	Typed         []string
	Scrolls       [][2]int64
	Scripts       []string
	Screenshots   int
	OverlayActive bool
	MaxActive     int
	active        int
}

func New() *Fake {
	return &Fake{
		Elements:     make(map[string]Element),
		Unresolvable: make(map[string]bool),
		Failures:     make(map[string]error),
	}
}

func (f *Fake) enter() func() {
	f.mu.Lock()
	f.active++
	if f.active > f.MaxActive {
		f.MaxActive = f.active
	}
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}
}

func (f *Fake) failure(name string) error {
	if err, ok := f.Failures[name]; ok {
		return apperr.Wrap(name, apperr.CodeInternal, err, nil)
	}

	return nil
}

func (f *Fake) requireSession(op string) error {
	if f.history == nil {
		return apperr.New(op, apperr.CodeNoSession, "No open windows", nil)
	}

	return nil
}

func timeout(op string, selector string, d time.Duration) error {
	return apperr.Wrap(op, apperr.CodeTimeout,
		fmt.Errorf("timeout: Timeout %dms exceeded while waiting for %s", d.Milliseconds(), selector), nil)
}

// Launches reports how many sessions were created.
func (f *Fake) Launches() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.launched
}

// History returns the visited URLs and the current position.
func (f *Fake) History() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.history...), f.position
}

func (f *Fake) Ensure(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("Ensure"); err != nil {
		return err
	}

	if f.history != nil {
		return nil
	}

	f.launched++
	f.sessionID = fmt.Sprintf("fake-%d", f.launched)
	f.history = []string{entity.SentinelURL}
	f.position = 0

	return nil
}

func (f *Fake) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireSession("Close"); err != nil {
		return err
	}

	f.history = nil
	f.position = 0
	f.sessionID = ""
	f.OverlayActive = false

	return nil
}

func (f *Fake) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.history = nil

	return nil
}

func (f *Fake) IsPageOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.history != nil && f.history[f.position] != entity.SentinelURL
}

func (f *Fake) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.history == nil {
		return entity.SentinelURL
	}

	return f.history[f.position]
}

func (f *Fake) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sessionID
}

// push adds a history entry. Like Chromium, the first navigation of a fresh
// page replaces its initial blank document instead of adding an entry.
func (f *Fake) push(target string) {
	if len(f.history) == 1 && f.history[0] == entity.SentinelURL {
		f.history[0] = target
		f.position = 0

		return
	}

	f.history = append(f.history[:f.position+1], target)
	f.position = len(f.history) - 1
}

func (f *Fake) Navigate(ctx context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireSession("Navigate"); err != nil {
		return err
	}

	if err := f.failure("Navigate"); err != nil {
		return err
	}

	if u, err := url.Parse(target); err == nil && f.Unresolvable[u.Hostname()] {
		f.push(chromeErrorURL)

		return apperr.Wrap("Navigate", apperr.CodeNameResolution,
			fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", target), nil)
	}

	f.push(target)

	return nil
}

func (f *Fake) Back(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("Back"); err != nil {
		return err
	}

	if f.position > 0 {
		f.position--
	}

	return nil
}

func (f *Fake) Forward(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("Forward"); err != nil {
		return err
	}

	if f.position < len(f.history)-1 {
		f.position++
	}

	return nil
}

func (f *Fake) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failure("Reload")
}

func (f *Fake) lookup(op string, selector string, visible bool, d time.Duration) (Element, error) {
	el, ok := f.Elements[selector]
	if !ok || (visible && el.Hidden) {
		return Element{}, timeout(op, selector, d)
	}

	return el, nil
}

func (f *Fake) Click(ctx context.Context, selector string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("Click"); err != nil {
		return err
	}

	if _, err := f.lookup("Click", selector, true, d); err != nil {
		return err
	}

	f.Clicks = append(f.Clicks, selector)

	return nil
}

func (f *Fake) TypeText(ctx context.Context, selector string, text string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.lookup("TypeText", selector, false, d); err != nil {
		return err
	}

	f.Typed = append(f.Typed, selector+"="+text)

	return nil
}

func (f *Fake) InnerText(ctx context.Context, selector string, d time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, err := f.lookup("InnerText", selector, false, d)
	if err != nil {
		return "", err
	}

	return el.Text, nil
}

func (f *Fake) Attribute(ctx context.Context, selector string, name string, d time.Duration) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, err := f.lookup("Attribute", selector, false, d)
	if err != nil {
		return nil, err
	}

	value, ok := el.Attributes[name]
	if !ok {
		return nil, nil
	}

	return &value, nil
}

func (f *Fake) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("OuterHTML"); err != nil {
		return nil, err
	}

	elements := []string{}
	if el, ok := f.Elements[selector]; ok {
		elements = append(elements, el.HTML)
	}

	return elements, nil
}

func (f *Fake) Scroll(ctx context.Context, x int64, y int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Scrolls = append(f.Scrolls, [2]int64{x, y})

	return nil
}

func (f *Fake) ExecuteScript(ctx context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("ExecuteScript"); err != nil {
		return err
	}

	f.Scripts = append(f.Scripts, script)

	return nil
}

func (f *Fake) Screenshot(ctx context.Context) ([]byte, error) {
	defer f.enter()()

	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("Screenshot"); err != nil {
		return nil, err
	}

	f.Screenshots++

	if f.OverlayActive {
		return []byte(fmt.Sprintf("overlay-%d", f.Screenshots)), nil
	}

	return []byte(fmt.Sprintf("plain-%d", f.Screenshots)), nil
}

func (f *Fake) ActivateOverlay(ctx context.Context) ([]entity.OverlayEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OverlayActive = true

	if err := f.failure("ActivateOverlay"); err != nil {
		return nil, err
	}

	return append([]entity.OverlayEntry(nil), f.Labels...), nil
}

func (f *Fake) DeactivateOverlay(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OverlayActive = false

	return f.failure("DeactivateOverlay")
}
