package entity

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// SentinelURL is what a fresh page reports before anything is loaded.
const SentinelURL = "about:blank"

// SyntheticIDPrefix marks ids assigned by the overlay script.
const SyntheticIDPrefix = "RANDOM_ID_"

type OverlayEntry struct {
	Label     string `json:"label"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	Class     string `json:"class"`
	Text      string `json:"text"`
	AriaLabel string `json:"ariaLabel"`
}

// HasSyntheticID reports whether the element id was generated by the overlay.
func (e OverlayEntry) HasSyntheticID() bool {
	return strings.HasPrefix(e.ID, SyntheticIDPrefix)
}

var (
	cssIdent  = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)
	cssString = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
)

// Selector is the CSS selector that addresses the labeled element. Ids that
// are not plain identifiers are matched as a quoted attribute value.
func (e OverlayEntry) Selector() string {
	if cssIdent.MatchString(e.ID) {
		return "#" + e.ID
	}

	return `[id="` + cssString.Replace(e.ID) + `"]`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type Response struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

func Success(message string) *Response {
	return &Response{Status: StatusSuccess, Message: message}
}

func Failure(message string) *Response {
	return &Response{Status: StatusError, Message: message}
}

type ScreenshotResponse struct {
	Response
	Screenshot            string `json:"screenshot"`
	ScreenshotWithOverlay string `json:"screenshot_with_overlay"`
	OverlayInfo           string `json:"overlay_info"`
	ScreenshotIndex       int    `json:"screenshot_index"`
}

type ElementsResponse struct {
	Response
	Elements []string `json:"elements"`
}

type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Delta converts a scroll amount to a window.scrollBy offset.
func (d ScrollDirection) Delta(amount int64) (x, y int64, ok bool) {
	switch d {
	case ScrollUp:
		return 0, -amount, true
	case ScrollDown:
		return 0, amount, true
	case ScrollLeft:
		return -amount, 0, true
	case ScrollRight:
		return amount, 0, true
	}

	return 0, 0, false
}

type HistoryDirection string

const (
	HistoryBack    HistoryDirection = "back"
	HistoryForward HistoryDirection = "forward"
)

// FieldError names the request field that failed validation.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

func required(field string, value null.String) error {
	if !value.Valid {
		return &FieldError{Field: field}
	}

	return nil
}

// Request is implemented by every operation body.
type Request interface {
	Validate() error
}

type OpenRequest struct {
	URL null.String `json:"url"`
}

func (r *OpenRequest) Validate() error {
	if err := required("url", r.URL); err != nil {
		return err
	}

	if strings.TrimSpace(r.URL.String) == "" {
		return &FieldError{Field: "url"}
	}

	return nil
}

type ClickRequest struct {
	Selector null.String `json:"selector"`
}

func (r *ClickRequest) Validate() error {
	return required("selector", r.Selector)
}

type TypeRequest struct {
	Selector null.String `json:"selector"`
	Text     null.String `json:"text"`
}

func (r *TypeRequest) Validate() error {
	if err := required("selector", r.Selector); err != nil {
		return err
	}

	return required("text", r.Text)
}

type ScrollRequest struct {
	Direction null.String `json:"direction"`
	Amount    null.Int    `json:"amount"`
}

func (r *ScrollRequest) Validate() error {
	if err := required("direction", r.Direction); err != nil {
		return err
	}

	if !r.Amount.Valid {
		return &FieldError{Field: "amount"}
	}

	return nil
}

type SelectorRequest struct {
	Selector null.String `json:"selector"`
}

func (r *SelectorRequest) Validate() error {
	return required("selector", r.Selector)
}

type AttributeRequest struct {
	Selector  null.String `json:"selector"`
	Attribute null.String `json:"attribute"`
}

func (r *AttributeRequest) Validate() error {
	if err := required("selector", r.Selector); err != nil {
		return err
	}

	return required("attribute", r.Attribute)
}

type ScriptRequest struct {
	Script null.String `json:"script"`
}

func (r *ScriptRequest) Validate() error {
	return required("script", r.Script)
}

type NavigateRequest struct {
	Direction null.String `json:"direction"`
}

func (r *NavigateRequest) Validate() error {
	return required("direction", r.Direction)
}
