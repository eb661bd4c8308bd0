package types

// CaptionResponse is returned by POST /analyze-image on success.
type CaptionResponse struct {
	// Identifier of the model that produced the caption.
	// example: ydshieh/vit-gpt2-coco-en
	Model string `json:"model" example:"ydshieh/vit-gpt2-coco-en"`
	// Generated caption text.
	// example: a dog laying on a couch with a blanket
	Caption string `json:"caption" example:"a dog laying on a couch with a blanket"`
	// Wall-clock duration of the inference call in milliseconds (truncated).
	// example: 412
	LatencyMS int64 `json:"latency_ms" example:"412"`
}

// ErrorResponse is the JSON error payload for every non-2xx response.
type ErrorResponse struct {
	// Human readable error message.
	// example: Invalid service token
	Detail string `json:"detail" example:"Invalid service token"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Model served by this process.
	Model ModelInfo `json:"model"`
	// Lifecycle state of the model handle (loading, ready, error, closed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last inference error observed (if any).
	LastError string `json:"last_error,omitempty"`
	// Number of captions generated successfully.
	// example: 42
	CaptionsTotal uint64 `json:"captions_total" example:"42"`
	// Number of failed inference calls.
	// example: 1
	ErrorsTotal uint64 `json:"errors_total" example:"1"`
	// Inference calls currently holding or waiting for the model.
	// example: 0
	Inflight int `json:"inflight" example:"0"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
