package httpapi

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("CAPTIOND_REQUEST_LOG"))

// SetDefaultLogLevel overrides the request log level used when a request carries no override.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logAnalyzeEnd records the outcome of one /analyze-image call. Failures are
// logged from LevelError up, successes from LevelInfo up.
func logAnalyzeEnd(r *http.Request, lvl LogLevel, status int, start time.Time, caption string, err error) {
	if lvl < LevelError || (err == nil && lvl < LevelInfo) {
		return
	}
	dur := time.Since(start)
	if zlog == nil {
		if err != nil {
			log.Printf("analyze end status=%d dur=%s err=%v", status, dur, err)
		} else {
			log.Printf("analyze end status=%d dur=%s", status, dur)
		}
		return
	}
	z := zlog.Info()
	if err != nil {
		z = zlog.Error().Err(err)
	}
	z = z.Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if lvl >= LevelDebug && caption != "" {
		z = z.Str("caption", caption)
	}
	z.Msg("analyze end")
}
