//go:build !onnx

package captioner

import (
	"context"
	"image"
)

// onnxBackend is compiled when the 'onnx' build tag is NOT set, keeping default
// builds CGO-free. The real runtime lives in onnx_backend.go.
type onnxBackend struct{ cfg Config }

func newONNXBackend(cfg Config) Backend { return &onnxBackend{cfg: cfg} }

func (b *onnxBackend) Load(ctx context.Context) error {
	return ErrDependencyUnavailable("onnx support not built (missing 'onnx' build tag)")
}

func (b *onnxBackend) Generate(ctx context.Context, img image.Image, params GenerateParams) ([]string, error) {
	return nil, ErrDependencyUnavailable("onnx support not built (missing 'onnx' build tag)")
}

func (b *onnxBackend) Close() error { return nil }
