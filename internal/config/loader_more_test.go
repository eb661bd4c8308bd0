package config

import (
	"testing"
)

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "model_dir": }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.toml", "addr=:8080\nmodel_dir\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Overlay(t *testing.T) {
	base := Config{Addr: ":1", ServiceToken: "file-token", Backend: "onnx"}
	cfg, err := FromEnv(base, envMap(map[string]string{
		"SERVICE_TOKEN":           "env-token",
		"CAPTIOND_BACKEND":        "remote",
		"CAPTIOND_REMOTE_URL":     "http://r",
		"CAPTIOND_MAX_NEW_TOKENS": "8",
		"CAPTIOND_ADDR":           "   ",
	}))
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	if cfg.ServiceToken != "env-token" || cfg.Backend != "remote" || cfg.RemoteURL != "http://r" || cfg.MaxNewTokens != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Addr != ":1" {
		t.Fatalf("blank env must not override addr, got %q", cfg.Addr)
	}
}

func TestFromEnv_SecretsTakenVerbatim(t *testing.T) {
	cfg, err := FromEnv(Config{}, envMap(map[string]string{"SERVICE_TOKEN": "  ", "CAPTIOND_REMOTE_TOKEN": " r "}))
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	if cfg.ServiceToken != "  " || cfg.RemoteToken != " r " {
		t.Fatalf("secrets altered: %q %q", cfg.ServiceToken, cfg.RemoteToken)
	}
	if got := cfg.ApplyDefaults().ServiceToken; got != "  " {
		t.Fatalf("whitespace token replaced by default: %q", got)
	}
	cfg, err = FromEnv(Config{}, envMap(map[string]string{"SERVICE_TOKEN": ""}))
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	if got := cfg.ApplyDefaults().ServiceToken; got != DefaultServiceToken {
		t.Fatalf("empty token should fall back to default, got %q", got)
	}
}

func TestFromEnv_BadNumber(t *testing.T) {
	if _, err := FromEnv(Config{}, envMap(map[string]string{"CAPTIOND_MAX_NEW_TOKENS": "many"})); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := FromEnv(Config{}, envMap(map[string]string{"CAPTIOND_INFER_TIMEOUT_SECONDS": "x"})); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}.ApplyDefaults()
	if cfg.Addr != DefaultAddr || cfg.ServiceToken != DefaultServiceToken {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	cfg = Config{Addr: ":1", ServiceToken: "t"}.ApplyDefaults()
	if cfg.Addr != ":1" || cfg.ServiceToken != "t" {
		t.Fatalf("defaults overrode explicit values: %+v", cfg)
	}
}
