package captioner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func openRemote(t *testing.T, cfg Config) *Captioner {
	t.Helper()
	cfg.Backend = BackendRemote
	c, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRemoteHF_SendsImageAndParsesCaption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer hf_x" {
			t.Errorf("authorization=%q", got)
		}
		var req hfRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Parameters.MaxNewTokens != DefaultMaxNewTokens {
			t.Errorf("max_new_tokens=%d", req.Parameters.MaxNewTokens)
		}
		raw, err := base64.StdEncoding.DecodeString(req.Inputs)
		if err != nil {
			t.Errorf("base64: %v", err)
		}
		if _, err := jpeg.Decode(bytes.NewReader(raw)); err != nil {
			t.Errorf("inputs are not a JPEG: %v", err)
		}
		_, _ = io.WriteString(w, `[{"generated_text":"a red square "}]`)
	}))
	defer srv.Close()
	c := openRemote(t, Config{RemoteURL: srv.URL, RemoteToken: "hf_x"})
	res, err := c.Caption(testCtx(t), testImage())
	if err != nil {
		t.Fatalf("caption: %v", err)
	}
	if res.Caption != "a red square " {
		t.Fatalf("caption=%q", res.Caption)
	}
}

func TestRemoteHF_HTTPErrorIsInference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"Model is currently loading"}`)
	}))
	defer srv.Close()
	c := openRemote(t, Config{RemoteURL: srv.URL})
	_, err := c.Caption(testCtx(t), testImage())
	if !IsInference(err) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("error should carry status: %v", err)
	}
}

func TestRemoteHF_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	c := openRemote(t, Config{RemoteURL: srv.URL, RemoteTimeout: 20 * time.Millisecond})
	if _, err := c.Caption(testCtx(t), testImage()); !IsInference(err) {
		t.Fatalf("expected inference error on timeout, got %v", err)
	}
}

func TestRemoteCaptiond_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-image" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer dev-token" {
			t.Errorf("authorization=%q", got)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("form file: %v", err)
		}
		_, _ = io.WriteString(w, `{"model":"upstream","caption":"a bird on a wire","latency_ms":3}`)
	}))
	defer srv.Close()
	c := openRemote(t, Config{RemoteURL: srv.URL, RemoteToken: "dev-token", RemoteFormat: "captiond"})
	res, err := c.Caption(testCtx(t), testImage())
	if err != nil {
		t.Fatalf("caption: %v", err)
	}
	if res.Caption != "a bird on a wire" || res.ModelID != DefaultModelID {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRemote_LoadValidation(t *testing.T) {
	for _, u := range []string{"", "ftp://host/x", "not a url", "/relative"} {
		if _, err := Open(context.Background(), Config{Backend: BackendRemote, RemoteURL: u}); err == nil {
			t.Fatalf("expected load error for %q", u)
		}
	}
	if _, err := Open(context.Background(), Config{Backend: BackendRemote, RemoteURL: "http://x", RemoteFormat: "grpc"}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestParseGeneratedTexts(t *testing.T) {
	cases := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{`[{"generated_text":"a"},{"generated_text":"b"}]`, []string{"a", "b"}, false},
		{`{"generated_text":"c"}`, []string{"c"}, false},
		{`{"model":"m","caption":"d","latency_ms":1}`, []string{"d"}, false},
		{`[]`, nil, false},
		{`{"error":"overloaded"}`, nil, true},
		{`<html>`, nil, true},
	}
	for _, tc := range cases {
		got, err := parseGeneratedTexts([]byte(tc.in))
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err=%v", tc.in, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v want %v", tc.in, got, tc.want)
			}
		}
	}
}
