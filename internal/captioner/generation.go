package captioner

import (
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"captiond/internal/imaging"
)

// modelSpec holds the numbers the ONNX backend needs from a bundle's
// config.json and preprocessor_config.json.
type modelSpec struct {
	DecoderStartID int64
	EOSID          int64
	HiddenSize     int
	VocabSize      int
	PatchSize      int
	Norm           imaging.Normalization
}

// defaultModelSpec matches ydshieh/vit-gpt2-coco-en.
func defaultModelSpec() modelSpec {
	return modelSpec{
		DecoderStartID: 50256,
		EOSID:          50256,
		HiddenSize:     768,
		VocabSize:      50257,
		PatchSize:      16,
		Norm:           imaging.ViTDefaults,
	}
}

// EncoderSeqLen is the number of encoder tokens: one per patch plus [CLS].
func (s modelSpec) EncoderSeqLen() int {
	n := s.Norm.Size / s.PatchSize
	return n*n + 1
}

// readModelSpec overlays values found in the optional bundle files on the defaults.
// Empty paths are skipped.
func readModelSpec(configPath, preprocessorPath string) (modelSpec, error) {
	spec := defaultModelSpec()
	if configPath != "" {
		raw, err := readJSON(configPath)
		if err != nil {
			return spec, err
		}
		cfg := gjson.ParseBytes(raw)
		if v := firstInt(cfg, "decoder_start_token_id", "decoder.decoder_start_token_id", "decoder.bos_token_id"); v.Exists() {
			spec.DecoderStartID = v.Int()
		}
		if v := firstInt(cfg, "eos_token_id", "decoder.eos_token_id"); v.Exists() {
			spec.EOSID = v.Int()
		}
		if v := firstInt(cfg, "encoder.hidden_size"); v.Exists() {
			spec.HiddenSize = int(v.Int())
		}
		if v := firstInt(cfg, "decoder.vocab_size", "vocab_size"); v.Exists() {
			spec.VocabSize = int(v.Int())
		}
		if v := firstInt(cfg, "encoder.patch_size"); v.Exists() {
			spec.PatchSize = int(v.Int())
		}
		if v := firstInt(cfg, "encoder.image_size"); v.Exists() {
			spec.Norm.Size = int(v.Int())
		}
	}
	if preprocessorPath != "" {
		raw, err := readJSON(preprocessorPath)
		if err != nil {
			return spec, err
		}
		pp := gjson.ParseBytes(raw)
		if v := firstInt(pp, "size.height", "size.shortest_edge", "size"); v.Exists() {
			spec.Norm.Size = int(v.Int())
		}
		if mean := pp.Get("image_mean"); mean.IsArray() {
			spec.Norm.Mean = triple(mean, spec.Norm.Mean)
		}
		if std := pp.Get("image_std"); std.IsArray() {
			spec.Norm.Std = triple(std, spec.Norm.Std)
		}
		if v := pp.Get("rescale_factor"); v.Type == gjson.Number {
			spec.Norm.Rescale = float32(v.Float())
		}
		if v := pp.Get("do_normalize"); v.Exists() && !v.Bool() {
			spec.Norm.Mean = [3]float32{}
			spec.Norm.Std = [3]float32{1, 1, 1}
		}
	}
	if spec.PatchSize <= 0 || spec.Norm.Size < spec.PatchSize {
		return spec, fmt.Errorf("invalid model geometry: image size %d, patch size %d", spec.Norm.Size, spec.PatchSize)
	}
	if spec.HiddenSize <= 0 || spec.VocabSize <= 0 {
		return spec, fmt.Errorf("invalid model dimensions: hidden %d, vocab %d", spec.HiddenSize, spec.VocabSize)
	}
	return spec, nil
}

func readJSON(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s: invalid JSON", path)
	}
	return raw, nil
}

func firstInt(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.Number {
			return v
		}
	}
	return gjson.Result{}
}

func triple(arr gjson.Result, def [3]float32) [3]float32 {
	vals := arr.Array()
	if len(vals) != 3 {
		return def
	}
	return [3]float32{float32(vals[0].Float()), float32(vals[1].Float()), float32(vals[2].Float())}
}

// argmaxLast returns the id with the highest logit at the final position of a
// [1, seqLen, vocab] logits tensor.
func argmaxLast(logits []float32, seqLen, vocab int) int64 {
	off := (seqLen - 1) * vocab
	row := logits[off : off+vocab]
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return int64(best)
}

// greedyDecode feeds the growing sequence to step until it yields eosID or
// maxNew tokens were produced. The returned ids exclude the start and end tokens.
func greedyDecode(ctx context.Context, startID, eosID int64, maxNew int, step func(ids []int64) (int64, error)) ([]int64, error) {
	ids := make([]int64, 1, maxNew+1)
	ids[0] = startID
	for len(ids)-1 < maxNew {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := step(ids)
		if err != nil {
			return nil, err
		}
		if next == eosID {
			break
		}
		ids = append(ids, next)
	}
	return ids[1:], nil
}
