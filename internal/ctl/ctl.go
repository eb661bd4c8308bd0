// Package ctl implements captionctl, a command-line client for a running captiond.
package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"captiond/internal/client"
)

// Defaults used when neither flags nor environment provide a value.
const (
	DefaultURL   = "http://localhost:8001"
	DefaultToken = "dev-token"
)

// Config holds client settings resolved from flags and environment.
type Config struct {
	URL      string
	Token    string
	Timeout  time.Duration
	Parallel int
}

// Line is one JSON line printed per analyzed file. Successful lines always
// carry latency_ms, including zero.
type Line struct {
	File      string `json:"file"`
	Model     string `json:"model,omitempty"`
	Caption   string `json:"caption,omitempty"`
	LatencyMS *int64 `json:"latency_ms,omitempty"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ConfigFromEnv returns defaults overlaid with CAPTIOND_URL and SERVICE_TOKEN.
func ConfigFromEnv() Config {
	return Config{
		URL:      envStr("CAPTIOND_URL", DefaultURL),
		Token:    envStr("SERVICE_TOKEN", DefaultToken),
		Timeout:  2 * time.Minute,
		Parallel: 1,
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Analyze uploads every file and writes one Line per file to out, in argument
// order. It returns an error when any upload failed.
func Analyze(ctx context.Context, cfg Config, files []string, out io.Writer) error {
	if len(files) == 0 {
		return errors.New("analyze requires at least one file")
	}
	c := client.New(cfg.URL, cfg.Token)
	lines := make([]Line, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Parallel > 0 {
		g.SetLimit(cfg.Parallel)
	} else {
		g.SetLimit(1)
	}
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			lines[i] = analyzeOne(gctx, c, cfg.Timeout, f)
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(out)
	failed := 0
	for _, l := range lines {
		if l.Error != "" {
			failed++
		}
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

func analyzeOne(ctx context.Context, c *client.Client, timeout time.Duration, path string) Line {
	line := Line{File: path}
	f, err := os.Open(path)
	if err != nil {
		line.Error = err.Error()
		return line
	}
	defer f.Close()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := c.Analyze(ctx, filepath.Base(path), f)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			line.Status = apiErr.StatusCode
			line.Error = apiErr.Detail
		} else {
			line.Error = err.Error()
		}
		return line
	}
	line.Model = resp.Model
	line.Caption = resp.Caption
	latency := resp.LatencyMS
	line.LatencyMS = &latency
	return line
}
