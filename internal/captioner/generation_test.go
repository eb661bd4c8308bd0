package captioner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeJSONFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestReadModelSpec_Defaults(t *testing.T) {
	spec, err := readModelSpec("", "")
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if spec.DecoderStartID != 50256 || spec.EOSID != 50256 || spec.VocabSize != 50257 || spec.HiddenSize != 768 {
		t.Fatalf("unexpected defaults: %+v", spec)
	}
	if spec.EncoderSeqLen() != 197 {
		t.Fatalf("seq len=%d", spec.EncoderSeqLen())
	}
}

func TestReadModelSpec_Overlay(t *testing.T) {
	cfg := writeJSONFile(t, "config.json", `{
		"decoder_start_token_id": 1,
		"eos_token_id": 2,
		"encoder": {"hidden_size": 384, "image_size": 384, "patch_size": 32},
		"decoder": {"vocab_size": 1000}
	}`)
	pp := writeJSONFile(t, "preprocessor_config.json", `{
		"size": {"height": 384, "width": 384},
		"image_mean": [0.485, 0.456, 0.406],
		"image_std": [0.229, 0.224, 0.225],
		"rescale_factor": 0.5
	}`)
	spec, err := readModelSpec(cfg, pp)
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if spec.DecoderStartID != 1 || spec.EOSID != 2 || spec.HiddenSize != 384 || spec.VocabSize != 1000 || spec.PatchSize != 32 {
		t.Fatalf("config not applied: %+v", spec)
	}
	if spec.Norm.Size != 384 || spec.Norm.Mean[0] != float32(0.485) || spec.Norm.Std[2] != float32(0.225) || spec.Norm.Rescale != 0.5 {
		t.Fatalf("preprocessor not applied: %+v", spec.Norm)
	}
	if spec.EncoderSeqLen() != 145 {
		t.Fatalf("seq len=%d", spec.EncoderSeqLen())
	}
}

func TestReadModelSpec_NestedTokenIDsAndScalarSize(t *testing.T) {
	cfg := writeJSONFile(t, "config.json", `{"decoder": {"bos_token_id": 7, "eos_token_id": 8}}`)
	pp := writeJSONFile(t, "preprocessor_config.json", `{"size": 224, "do_normalize": false}`)
	spec, err := readModelSpec(cfg, pp)
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if spec.DecoderStartID != 7 || spec.EOSID != 8 {
		t.Fatalf("token ids: %+v", spec)
	}
	if spec.Norm.Size != 224 || spec.Norm.Mean != [3]float32{} || spec.Norm.Std != [3]float32{1, 1, 1} {
		t.Fatalf("normalization: %+v", spec.Norm)
	}
}

func TestReadModelSpec_Errors(t *testing.T) {
	if _, err := readModelSpec(filepath.Join(t.TempDir(), "absent.json"), ""); err == nil {
		t.Fatalf("expected error for missing config")
	}
	bad := writeJSONFile(t, "config.json", `{not json`)
	if _, err := readModelSpec(bad, ""); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
	geom := writeJSONFile(t, "config.json", `{"encoder": {"image_size": 8, "patch_size": 16}}`)
	if _, err := readModelSpec(geom, ""); err == nil {
		t.Fatalf("expected geometry error")
	}
}

func TestArgmaxLast(t *testing.T) {
	// seq=2, vocab=3: only the last row counts.
	logits := []float32{9, 0, 0, 0.1, 0.7, 0.2}
	if got := argmaxLast(logits, 2, 3); got != 1 {
		t.Fatalf("argmax=%d", got)
	}
	// ties resolve to the lowest id
	if got := argmaxLast([]float32{1, 1}, 1, 2); got != 0 {
		t.Fatalf("tie argmax=%d", got)
	}
}

func TestGreedyDecode_StopsAtEOS(t *testing.T) {
	script := []int64{11, 12, 99, 13}
	var seen [][]int64
	step := func(ids []int64) (int64, error) {
		seen = append(seen, append([]int64(nil), ids...))
		return script[len(ids)-1], nil
	}
	got, err := greedyDecode(context.Background(), 5, 99, 32, step)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0] != 11 || got[1] != 12 {
		t.Fatalf("ids=%v", got)
	}
	if len(seen) != 3 || seen[0][0] != 5 || len(seen[2]) != 3 {
		t.Fatalf("prefixes=%v", seen)
	}
}

func TestGreedyDecode_MaxNewTokens(t *testing.T) {
	calls := 0
	step := func(ids []int64) (int64, error) { calls++; return 1, nil }
	got, err := greedyDecode(context.Background(), 0, 99, 4, step)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 4 || calls != 4 {
		t.Fatalf("ids=%v calls=%d", got, calls)
	}
}

func TestGreedyDecode_Errors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := greedyDecode(context.Background(), 0, 99, 4, func([]int64) (int64, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := greedyDecode(ctx, 0, 99, 4, func([]int64) (int64, error) { return 1, nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
