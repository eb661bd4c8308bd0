package e2e

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"captiond/internal/captioner"
	"captiond/internal/httpapi"
)

const testToken = "e2e-token"

// scriptedBackend returns a fixed caption, or err when set.
type scriptedBackend struct {
	caption string
	err     error
	calls   atomic.Int32
}

func (b *scriptedBackend) Load(ctx context.Context) error { return nil }

func (b *scriptedBackend) Generate(ctx context.Context, img image.Image, params captioner.GenerateParams) ([]string, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	return []string{b.caption}, nil
}

func (b *scriptedBackend) Close() error { return nil }

// newServer serves a captioner wrapping b behind the real router.
func newServer(t *testing.T, modelID string, b captioner.Backend) (*httptest.Server, *captioner.Captioner) {
	t.Helper()
	c := captioner.New(captioner.Config{ModelID: modelID, Backend: "fake"}, b)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(c, testToken))
	t.Cleanup(func() {
		srv.Close()
		_ = c.Close()
	})
	return srv, c
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodePNG(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}
