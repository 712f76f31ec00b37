package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason    = "reason"
	MetaStage     = "stage"
	MetaField     = "field"
	MetaSelector  = "selector"
	MetaLabel     = "label"
	MetaURL       = "url"
	MetaDirection = "direction"

	StageSession    = "session"
	StageOverlay    = "overlay"
	StageScreenshot = "screenshot"
	StageNavigation = "navigation"
	StageHistory    = "history"
	StageLookup     = "lookup"
	StageScript     = "script"
	StageRequest    = "request"

	CodeInternal             = "internal"
	CodeInvalidArgument      = "invalid_argument"
	CodeTimeout              = "timeout"
	CodeNoPageOpen           = "no_page_open"
	CodeNoSession            = "no_session"
	CodeElementNotFound      = "element_not_found"
	CodeOverlayLabelNotFound = "overlay_label_not_found"
	CodeInvalidDirection     = "invalid_direction"
	CodeHistoryExhausted     = "history_exhausted"
	CodeNameResolution       = "name_resolution"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

// New builds an error whose public message is exactly message.
func New(op, code, message string, metadata map[string]any) error {
	return Wrap(op, code, errors.New(message), metadata)
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
		MetaStage:  StageRequest,
	})
}

// CodeOf returns the outermost code in the chain, CodeInternal for foreign errors.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

// Is reports whether any error in the chain carries code.
func Is(err error, code string) bool {
	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			return false
		}

		if appErr.Code == code {
			return true
		}

		err = appErr.Err
	}

	return false
}

// Message strips operation prefixes and returns the innermost message,
// which is what callers of the API get to see.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	if appErr.Err == nil {
		return appErr.Op
	}

	return Message(appErr.Err)
}
