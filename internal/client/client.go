// Package client talks to a captiond-compatible POST /analyze-image endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"captiond/pkg/types"
)

// AnalyzePath is the route served by captiond.
const AnalyzePath = "/analyze-image"

// FormField is the multipart field carrying the image.
const FormField = "image"

// APIError is returned for any non-200 response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analyze-image: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
}

// Client uploads images for captioning.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client. baseURL may be the server root or the full
// /analyze-image URL.
func New(baseURL, token string, opts ...Option) *Client {
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
	c := &Client{
		baseURL:    strings.TrimSuffix(strings.TrimRight(baseURL, "/"), AnalyzePath),
		token:      token,
		httpClient: &http.Client{Transport: tr},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze uploads the image read from r under filename and returns the caption.
// Deadlines come from ctx.
func (c *Client) Analyze(ctx context.Context, filename string, r io.Reader) (types.CaptionResponse, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.CaptionResponse{}, fmt.Errorf("read image: %w", err)
	}
	body, contentType, err := multipartBody(filename, data)
	if err != nil {
		return types.CaptionResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+AnalyzePath, body)
	if err != nil {
		return types.CaptionResponse{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.CaptionResponse{}, ctx.Err()
		}
		return types.CaptionResponse{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.CaptionResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.CaptionResponse{}, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}
	var out types.CaptionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.CaptionResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func multipartBody(filename string, data []byte) (io.Reader, string, error) {
	if filename == "" {
		filename = "image.jpg"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, filepath.Base(filename)))
	h.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// errorDetail extracts {"detail": ...}; plain-text bodies are returned trimmed.
func errorDetail(raw []byte) string {
	if gjson.ValidBytes(raw) {
		if d := gjson.GetBytes(raw, "detail"); d.Exists() {
			return d.String()
		}
		if e := gjson.GetBytes(raw, "error"); e.Exists() {
			return e.String()
		}
	}
	return strings.TrimSpace(string(raw))
}
