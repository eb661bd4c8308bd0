package captioner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"captiond/internal/client"
	"captiond/internal/imaging"
)

// remoteBackend delegates inference to an HTTP endpoint. With format "hf" it
// speaks the Hugging Face inference API; with "captiond" it uploads to another
// captiond-compatible /analyze-image.
type remoteBackend struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	api        *client.Client
}

func newRemoteBackend(cfg Config) (Backend, error) {
	switch cfg.RemoteFormat {
	case RemoteFormatHF, RemoteFormatCaptiond:
	default:
		return nil, fmt.Errorf("unknown remote format %q (want %s or %s)", cfg.RemoteFormat, RemoteFormatHF, RemoteFormatCaptiond)
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: every call carries a context deadline instead.
	return &remoteBackend{cfg: cfg, httpClient: &http.Client{Transport: tr}}, nil
}

// hfRequest is the JSON form of a Hugging Face image-to-text call.
type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxNewTokens int `json:"max_new_tokens,omitempty"`
	} `json:"parameters"`
}

func (b *remoteBackend) Load(ctx context.Context) error {
	u, err := url.Parse(strings.TrimSpace(b.cfg.RemoteURL))
	if err != nil {
		return fmt.Errorf("remote url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote url %q must be an absolute http(s) URL", b.cfg.RemoteURL)
	}
	b.endpoint = u.String()
	if b.cfg.RemoteFormat == RemoteFormatCaptiond {
		b.api = client.New(b.endpoint, b.cfg.RemoteToken, client.WithHTTPClient(b.httpClient))
	}
	logger.Debug().Str("endpoint", b.endpoint).Str("format", b.cfg.RemoteFormat).Msg("remote backend configured")
	return nil
}

func (b *remoteBackend) Generate(ctx context.Context, img image.Image, params GenerateParams) ([]string, error) {
	if b.endpoint == "" {
		return nil, errors.New("remote backend not initialized")
	}
	if b.cfg.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.RemoteTimeout)
		defer cancel()
	}
	jpg, err := imaging.EncodeJPEG(img, 90)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if b.api != nil {
		resp, err := b.api.Analyze(ctx, "image.jpg", bytes.NewReader(jpg))
		if err != nil {
			return nil, err
		}
		return []string{resp.Caption}, nil
	}
	return b.generateHF(ctx, jpg, params)
}

func (b *remoteBackend) generateHF(ctx context.Context, jpg []byte, params GenerateParams) ([]string, error) {
	var payload hfRequest
	payload.Inputs = base64.StdEncoding.EncodeToString(jpg)
	payload.Parameters.MaxNewTokens = params.MaxNewTokens
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if b.cfg.RemoteToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.RemoteToken)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote inference http error: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return parseGeneratedTexts(raw)
}

// parseGeneratedTexts accepts [{"generated_text": ...}], {"generated_text": ...}
// or {"caption": ...}. An {"error": ...} body is reported as an error.
func parseGeneratedTexts(raw []byte) ([]string, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("remote inference returned invalid JSON")
	}
	res := gjson.ParseBytes(raw)
	if e := res.Get("error"); e.Exists() {
		return nil, fmt.Errorf("remote inference error: %s", e.String())
	}
	var out []string
	if res.IsArray() {
		res.ForEach(func(_, v gjson.Result) bool {
			if t := v.Get("generated_text"); t.Exists() {
				out = append(out, t.String())
			}
			return true
		})
		return out, nil
	}
	for _, key := range []string{"generated_text", "caption"} {
		if t := res.Get(key); t.Exists() {
			return []string{t.String()}, nil
		}
	}
	return nil, nil
}

func (b *remoteBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}
