package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"captiond/internal/captioner"
	"captiond/internal/imaging"
	"captiond/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

const msgShuttingDown = "server shutting down"

// statusError is an HTTPError raised by the handlers themselves.
type statusError struct {
	code int
	msg  string
}

func (e statusError) Error() string   { return e.msg }
func (e statusError) StatusCode() int { return e.code }

// statusFor maps request-local failures to a status code. Everything that is
// not recognized is an internal error.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case imaging.IsDecodeError(err):
		return http.StatusBadRequest
	case captioner.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with the status chosen by statusFor.
func writeError(w http.ResponseWriter, err error) int {
	code := statusFor(err)
	writeJSONError(w, code, err.Error())
	return code
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Detail: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recoverJSON turns a panic into a 500 with a JSON body.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			if zlog != nil {
				zlog.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Str("path", r.URL.Path).Msg("handler panic")
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprint(rec))
		}()
		next.ServeHTTP(w, r)
	})
}
