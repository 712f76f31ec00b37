package logg

// Structured log field keys shared by every layer.
const (
	Layer     = "layer"
	Operation = "op"
	SessionID = "session_id"
	RequestID = "request_id"
	Selector  = "selector"
	Label     = "label"
	URL       = "url"
	Code      = "code"
	Duration  = "duration"
	Method    = "method"
	Path      = "path"
	HTTPCode  = "http_status"
	Addr      = "addr"
)
