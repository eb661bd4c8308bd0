package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captiond/internal/captioner"
	"captiond/internal/common/fsutil"
	"captiond/internal/config"
)

// flagValues receives command-line flags. A flag only overrides the config
// file and environment when it was set explicitly.
type flagValues struct {
	configPath string
	logLevel   string

	addr                 string
	modelID              string
	backend              string
	modelDir             string
	onnxRuntimeLib       string
	intraOpThreads       int
	remoteURL            string
	remoteFormat         string
	remoteTimeoutSeconds int
	maxNewTokens         int
	maxUploadBytes       int64
	inferTimeoutSeconds  int64
	requestLog           string
	corsEnabled          bool
	corsOrigins          string
	corsMethods          string
	corsHeaders          string
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&flagValues{}) }

// newRootCmdWith builds the command tree with flags bound to fv.
func newRootCmdWith(fv *flagValues) *cobra.Command {
	root := &cobra.Command{
		Use:           "captiond",
		Short:         "Image captioning HTTP service",
		Long:          "captiond loads an image-captioning model once and serves POST /analyze-image.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeCmd(cmd, fv)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "Path to config file (.yaml/.yml/.json/.toml); defaults to CAPTIOND_CONFIG")
	pf.StringVar(&fv.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults CAPTIOND_LOG_LEVEL or info)")
	pf.StringVar(&fv.modelID, "model-id", "", "Model identifier reported in responses (default "+captioner.DefaultModelID+")")
	pf.StringVar(&fv.backend, "backend", "", "Inference backend: onnx|remote (default onnx)")
	pf.StringVar(&fv.modelDir, "model-dir", "", "Directory holding the exported ONNX model bundle")
	pf.StringVar(&fv.onnxRuntimeLib, "onnxruntime-lib", "", "Path to the onnxruntime shared library")
	pf.IntVar(&fv.intraOpThreads, "intra-op-threads", 0, "ONNX Runtime intra-op threads (0=runtime default)")
	pf.StringVar(&fv.remoteURL, "remote-url", "", "Inference endpoint for the remote backend")
	pf.StringVar(&fv.remoteFormat, "remote-format", "", "Remote wire format: hf|captiond (default hf)")
	pf.IntVar(&fv.remoteTimeoutSeconds, "remote-timeout-seconds", 0, "Remote backend request timeout in seconds (default 60)")
	pf.IntVar(&fv.maxNewTokens, "max-new-tokens", 0, "Generation cap in new tokens (default 32)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the HTTP API (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeCmd(cmd, fv)
		},
	}
	for _, c := range []*cobra.Command{root, serve} {
		f := c.Flags()
		f.StringVar(&fv.addr, "addr", "", "HTTP listen address (defaults CAPTIOND_ADDR or "+config.DefaultAddr+")")
		f.Int64Var(&fv.maxUploadBytes, "max-upload-bytes", 0, "Maximum upload size in bytes (default 20 MiB)")
		f.Int64Var(&fv.inferTimeoutSeconds, "infer-timeout-seconds", 0, "Per-request inference timeout in seconds (0=none)")
		f.StringVar(&fv.requestLog, "request-log", "", "Default per-request log level: off|error|info|debug")
		f.BoolVar(&fv.corsEnabled, "cors-enabled", false, "Enable CORS middleware")
		f.StringVar(&fv.corsOrigins, "cors-origins", "", "Comma-separated allowed origins")
		f.StringVar(&fv.corsMethods, "cors-methods", "", "Comma-separated allowed methods")
		f.StringVar(&fv.corsHeaders, "cors-headers", "", "Comma-separated allowed headers")
	}

	caption := &cobra.Command{
		Use:     "caption <image>",
		Short:   "Caption a local image file without starting the server",
		Example: "  captiond caption --model-dir ~/models/vit-gpt2 ./dog.jpg",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCaptionCmd(cmd, fv, args[0])
		},
	}

	root.AddCommand(serve, caption)
	return root
}

// resolveConfig merges config file, environment and explicitly set flags, in
// that order of increasing precedence.
func resolveConfig(cmd *cobra.Command, fv *flagValues, lookup func(string) (string, bool)) (config.Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var cfg config.Config
	path := fv.configPath
	if path == "" {
		path, _ = lookup("CAPTIOND_CONFIG")
	}
	if path = strings.TrimSpace(path); path != "" {
		expanded, err := fsutil.ExpandHome(path)
		if err != nil {
			return cfg, err
		}
		loaded, err := config.Load(expanded)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	cfg, err := config.FromEnv(cfg, lookup)
	if err != nil {
		return cfg, err
	}

	set := cmd.Flags().Changed
	if set("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if set("addr") {
		cfg.Addr = fv.addr
	}
	if set("model-id") {
		cfg.ModelID = fv.modelID
	}
	if set("backend") {
		cfg.Backend = fv.backend
	}
	if set("model-dir") {
		cfg.ModelDir = fv.modelDir
	}
	if set("onnxruntime-lib") {
		cfg.OnnxRuntimeLib = fv.onnxRuntimeLib
	}
	if set("intra-op-threads") {
		cfg.IntraOpThreads = fv.intraOpThreads
	}
	if set("remote-url") {
		cfg.RemoteURL = fv.remoteURL
	}
	if set("remote-format") {
		cfg.RemoteFormat = fv.remoteFormat
	}
	if set("remote-timeout-seconds") {
		cfg.RemoteTimeoutSeconds = fv.remoteTimeoutSeconds
	}
	if set("max-new-tokens") {
		cfg.MaxNewTokens = fv.maxNewTokens
	}
	if set("max-upload-bytes") {
		cfg.MaxUploadBytes = fv.maxUploadBytes
	}
	if set("infer-timeout-seconds") {
		cfg.InferTimeoutSeconds = fv.inferTimeoutSeconds
	}
	if set("request-log") {
		cfg.RequestLog = fv.requestLog
	}
	if set("cors-enabled") {
		cfg.CORSEnabled = fv.corsEnabled
	}
	if set("cors-origins") {
		cfg.CORSAllowedOrigins = splitCSV(fv.corsOrigins)
	}
	if set("cors-methods") {
		cfg.CORSAllowedMethods = splitCSV(fv.corsMethods)
	}
	if set("cors-headers") {
		cfg.CORSAllowedHeaders = splitCSV(fv.corsHeaders)
	}

	return cfg.ApplyDefaults(), nil
}

func captionerConfig(cfg config.Config) (captioner.Config, error) {
	modelDir, err := fsutil.ExpandHome(cfg.ModelDir)
	if err != nil {
		return captioner.Config{}, err
	}
	lib, err := fsutil.ExpandHome(cfg.OnnxRuntimeLib)
	if err != nil {
		return captioner.Config{}, err
	}
	return captioner.Config{
		ModelID:        cfg.ModelID,
		Backend:        cfg.Backend,
		MaxNewTokens:   cfg.MaxNewTokens,
		ModelDir:       modelDir,
		OnnxRuntimeLib: lib,
		IntraOpThreads: cfg.IntraOpThreads,
		RemoteURL:      cfg.RemoteURL,
		RemoteToken:    cfg.RemoteToken,
		RemoteFormat:   cfg.RemoteFormat,
		RemoteTimeout:  time.Duration(cfg.RemoteTimeoutSeconds) * time.Second,
	}, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
