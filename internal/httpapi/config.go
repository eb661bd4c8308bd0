package httpapi

// maxUploadBytes caps the multipart body of /analyze-image. Default 20 MiB.
var maxUploadBytes int64 = 20 << 20

// multipartMemory is how much of an upload is held in memory before spilling to temp files.
const multipartMemory = 8 << 20

// SetMaxUploadBytes configures the maximum request body size for uploads.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 20 << 20
		return
	}
	maxUploadBytes = n
}

// inferTimeout bounds a single caption request. Zero means no deadline.
var inferTimeout = int64(0) // seconds

// SetInferTimeoutSeconds sets the inference timeout in seconds (0 disables).
func SetInferTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	inferTimeout = sec
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
