package captioner

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeBackend is a lightweight in-memory backend used for tests.
type fakeBackend struct {
	loadErr error
	genErr  error
	outputs []string
	// block, when non-nil, makes Generate wait until it is closed or ctx ends.
	block chan struct{}

	loads     atomic.Int32
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	closed    atomic.Bool
	mu        sync.Mutex
	params    []GenerateParams
}

func (f *fakeBackend) Load(ctx context.Context) error {
	f.loads.Add(1)
	return f.loadErr
}

func (f *fakeBackend) Generate(ctx context.Context, img image.Image, params GenerateParams) ([]string, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	f.params = append(f.params, params)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.genErr != nil {
		return nil, f.genErr
	}
	return append([]string(nil), f.outputs...), nil
}

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return nil
}

// loaded returns a ready Captioner around f.
func loaded(t *testing.T, f *fakeBackend) *Captioner {
	t.Helper()
	c := New(Config{Backend: "fake"}, f)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

// steppingClock returns a clock that advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := time.Unix(1700000000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
