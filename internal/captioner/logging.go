package captioner

import "github.com/rs/zerolog"

// logger defaults to a no-op so tests and library users stay quiet.
var logger = zerolog.Nop()

// SetLogger installs a structured logger used for load and inference events.
func SetLogger(l zerolog.Logger) { logger = l.With().Str("component", "captioner").Logger() }
