package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"captiond/internal/common/fsutil"
)

// File names produced by exporting a vision-encoder-decoder model to ONNX
// (e.g. `optimum-cli export onnx --model ydshieh/vit-gpt2-coco-en`).
const (
	EncoderFile      = "encoder_model.onnx"
	DecoderFile      = "decoder_model.onnx"
	VocabFile        = "vocab.json"
	ConfigFile       = "config.json"
	PreprocessorFile = "preprocessor_config.json"
)

// Bundle locates the files of an exported captioning model.
// Config and Preprocessor are empty when the optional files are absent.
type Bundle struct {
	Dir          string
	Encoder      string
	Decoder      string
	Vocab        string
	Config       string
	Preprocessor string
}

// LoadDir validates that dir holds a complete model bundle and returns absolute paths to its files.
func LoadDir(dir string) (Bundle, error) {
	if strings.TrimSpace(dir) == "" {
		return Bundle{}, fmt.Errorf("model dir is empty")
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return Bundle{}, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return Bundle{}, fmt.Errorf("abs path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return Bundle{}, fmt.Errorf("model dir: %w", err)
	}
	if !st.IsDir() {
		return Bundle{}, fmt.Errorf("model dir %s is not a directory", abs)
	}
	if missing := fsutil.MissingFiles(abs, EncoderFile, DecoderFile, VocabFile); len(missing) > 0 {
		return Bundle{}, fmt.Errorf("model dir %s is missing %s", abs, strings.Join(missing, ", "))
	}
	b := Bundle{
		Dir:     abs,
		Encoder: filepath.Join(abs, EncoderFile),
		Decoder: filepath.Join(abs, DecoderFile),
		Vocab:   filepath.Join(abs, VocabFile),
	}
	if p := filepath.Join(abs, ConfigFile); fsutil.IsRegularFile(p) {
		b.Config = p
	}
	if p := filepath.Join(abs, PreprocessorFile); fsutil.IsRegularFile(p) {
		b.Preprocessor = p
	}
	return b, nil
}
