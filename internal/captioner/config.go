package captioner

import (
	"strings"
	"time"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultModelID      = "ydshieh/vit-gpt2-coco-en"
	DefaultMaxNewTokens = 32

	BackendONNX   = "onnx"
	BackendRemote = "remote"

	RemoteFormatHF       = "hf"
	RemoteFormatCaptiond = "captiond"

	defaultRemoteTimeout = 60 * time.Second
)

// Config encapsulates all tunables for loading a model.
type Config struct {
	// ModelID is reported verbatim in every caption response.
	ModelID      string
	Backend      string
	MaxNewTokens int

	// ONNX backend
	ModelDir       string
	OnnxRuntimeLib string
	IntraOpThreads int

	// Remote backend
	RemoteURL     string
	RemoteToken   string
	RemoteFormat  string
	RemoteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.ModelID) == "" {
		c.ModelID = DefaultModelID
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendONNX
	}
	if c.MaxNewTokens <= 0 {
		c.MaxNewTokens = DefaultMaxNewTokens
	}
	c.RemoteFormat = strings.ToLower(strings.TrimSpace(c.RemoteFormat))
	if c.RemoteFormat == "" {
		c.RemoteFormat = RemoteFormatHF
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = defaultRemoteTimeout
	}
	return c
}

func (c Config) location() string {
	if c.Backend == BackendRemote {
		return c.RemoteURL
	}
	return c.ModelDir
}
