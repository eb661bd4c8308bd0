package captioner

import (
	"context"
	"image"
)

// Backend abstracts the model runtime used by the Captioner.
type Backend interface {
	// Load prepares the model. It is called exactly once before any Generate.
	Load(ctx context.Context) error
	// Generate returns the model's result sequence for img; the caller uses the head.
	// Implementations must return when ctx is canceled where the runtime allows it.
	Generate(ctx context.Context, img image.Image, params GenerateParams) ([]string, error)
	// Close releases resources associated with the backend.
	Close() error
}

// GenerateParams captures generation parameters passed to the backend.
type GenerateParams struct {
	MaxNewTokens int
}

// newBackend picks the runtime named by cfg.Backend.
func newBackend(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendONNX:
		return newONNXBackend(cfg), nil
	case BackendRemote:
		return newRemoteBackend(cfg)
	default:
		return nil, unknownBackendError{name: cfg.Backend}
	}
}
