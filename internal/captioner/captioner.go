package captioner

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"captiond/pkg/types"
)

// State represents the lifecycle of the model handle.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
	StateClosed  State = "closed"
)

// Result is one generated caption.
type Result struct {
	ModelID string
	Caption string
	Latency time.Duration
}

// LatencyMS returns the inference latency in whole milliseconds, truncated.
func (r Result) LatencyMS() int64 { return int64(r.Latency / time.Millisecond) }

// Captioner is the explicitly owned, load-once model handle shared by all requests.
type Captioner struct {
	cfg     Config
	backend Backend

	// slot has capacity 1: a single in-flight inference at a time.
	slot chan struct{}

	mu      sync.RWMutex
	state   State
	lastErr string

	startTime     time.Time
	captionsTotal atomic.Uint64
	errorsTotal   atomic.Uint64
	inflight      atomic.Int64

	now func() time.Time
}

// Open builds the backend named by cfg and loads it. A failure here is meant
// to abort process startup.
func Open(ctx context.Context, cfg Config) (*Captioner, error) {
	cfg = cfg.withDefaults()
	b, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	c := New(cfg, b)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// New wraps an existing backend without loading it.
func New(cfg Config, b Backend) *Captioner {
	return &Captioner{
		cfg:       cfg.withDefaults(),
		backend:   b,
		slot:      make(chan struct{}, 1),
		state:     StateLoading,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Load loads the backend. It must be called once before Caption.
func (c *Captioner) Load(ctx context.Context) error {
	logger.Info().Str("model", c.cfg.ModelID).Str("backend", c.cfg.Backend).Msg("model loading")
	start := c.now()
	if err := c.backend.Load(ctx); err != nil {
		c.setState(StateError, err.Error())
		logger.Error().Err(err).Str("model", c.cfg.ModelID).Msg("model load failed")
		return err
	}
	took := c.now().Sub(start)
	modelLoadSeconds.WithLabelValues(c.cfg.ModelID, c.cfg.Backend).Set(took.Seconds())
	c.setState(StateReady, "")
	logger.Info().Str("model", c.cfg.ModelID).Dur("took", took).Msg("model loaded")
	return nil
}

// Caption runs one inference on img and returns the head of the model's result sequence.
// Latency covers the backend call only, not the wait for the inference slot.
func (c *Captioner) Caption(ctx context.Context, img image.Image) (Result, error) {
	if !c.Ready() {
		return Result{}, ErrDependencyUnavailable("model not loaded")
	}
	c.inflight.Add(1)
	inferenceInflight.Inc()
	defer func() {
		c.inflight.Add(-1)
		inferenceInflight.Dec()
	}()

	release, err := c.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	start := c.now()
	out, err := c.backend.Generate(ctx, img, GenerateParams{MaxNewTokens: c.cfg.MaxNewTokens})
	elapsed := c.now().Sub(start)
	if err == nil && len(out) == 0 {
		err = errNoOutput
	}
	if err != nil {
		c.errorsTotal.Add(1)
		inferenceErrors.WithLabelValues(c.cfg.Backend).Inc()
		inferenceDuration.WithLabelValues(c.cfg.Backend, "error").Observe(elapsed.Seconds())
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		logger.Debug().Err(err).Dur("latency", elapsed).Msg("inference failed")
		return Result{}, inferenceError{err: err}
	}
	c.captionsTotal.Add(1)
	inferenceDuration.WithLabelValues(c.cfg.Backend, "ok").Observe(elapsed.Seconds())
	return Result{
		ModelID: c.cfg.ModelID,
		Caption: out[0],
		Latency: elapsed,
	}, nil
}

// acquire waits for the inference slot, honoring ctx cancellation.
func (c *Captioner) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	select {
	case c.slot <- struct{}{}:
		return func() { <-c.slot }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

// ModelID returns the fixed identifier reported in responses.
func (c *Captioner) ModelID() string { return c.cfg.ModelID }

// Ready reports whether the model is loaded and accepting requests.
func (c *Captioner) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateReady
}

// Info describes the loaded model.
func (c *Captioner) Info() types.ModelInfo {
	return types.ModelInfo{ID: c.cfg.ModelID, Backend: c.cfg.Backend, Location: c.cfg.location()}
}

// Status returns a read-only snapshot for /status.
func (c *Captioner) Status() types.StatusResponse {
	c.mu.RLock()
	state, lastErr := c.state, c.lastErr
	c.mu.RUnlock()
	now := c.now()
	return types.StatusResponse{
		Model:          c.Info(),
		State:          string(state),
		LastError:      lastErr,
		CaptionsTotal:  c.captionsTotal.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
		Inflight:       int(c.inflight.Load()),
		UptimeSeconds:  int64(now.Sub(c.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

// Close releases the backend. Further Caption calls fail.
func (c *Captioner) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()
	// Wait for an in-flight inference before freeing the runtime.
	c.slot <- struct{}{}
	defer func() { <-c.slot }()
	return c.backend.Close()
}

func (c *Captioner) setState(s State, errMsg string) {
	c.mu.Lock()
	c.state = s
	c.lastErr = errMsg
	c.mu.Unlock()
}
