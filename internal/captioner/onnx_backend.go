//go:build onnx

package captioner

import (
	"context"
	"errors"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"

	"captiond/internal/imaging"
	"captiond/internal/registry"
	"captiond/internal/tokenizer"
)

// Tensor names used by optimum's vision-encoder-decoder export.
var (
	encoderInputs  = []string{"pixel_values"}
	encoderOutputs = []string{"last_hidden_state"}
	decoderInputs  = []string{"input_ids", "encoder_hidden_states"}
	decoderOutputs = []string{"logits"}
)

// onnxBackend runs the encoder once per image and greedy-decodes with the
// decoder, recomputing the full prefix each step (no KV cache).
type onnxBackend struct {
	cfg     Config
	bundle  registry.Bundle
	spec    modelSpec
	vocab   *tokenizer.Decoder
	encoder *ort.DynamicAdvancedSession
	decoder *ort.DynamicAdvancedSession
	ownsEnv bool
}

func newONNXBackend(cfg Config) Backend { return &onnxBackend{cfg: cfg} }

func (b *onnxBackend) Load(ctx context.Context) error {
	bundle, err := registry.LoadDir(b.cfg.ModelDir)
	if err != nil {
		return err
	}
	spec, err := readModelSpec(bundle.Config, bundle.Preprocessor)
	if err != nil {
		return err
	}
	vocab, err := tokenizer.LoadVocab(bundle.Vocab)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ort.IsInitialized() {
		if b.cfg.OnnxRuntimeLib != "" {
			ort.SetSharedLibraryPath(b.cfg.OnnxRuntimeLib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return ErrDependencyUnavailable("onnxruntime init: " + err.Error())
		}
		b.ownsEnv = true
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return err
	}
	defer opts.Destroy()
	if b.cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(b.cfg.IntraOpThreads); err != nil {
			return err
		}
	}
	enc, err := ort.NewDynamicAdvancedSession(bundle.Encoder, encoderInputs, encoderOutputs, opts)
	if err != nil {
		return fmt.Errorf("load encoder %s: %w", bundle.Encoder, err)
	}
	dec, err := ort.NewDynamicAdvancedSession(bundle.Decoder, decoderInputs, decoderOutputs, opts)
	if err != nil {
		_ = enc.Destroy()
		return fmt.Errorf("load decoder %s: %w", bundle.Decoder, err)
	}
	b.bundle, b.spec, b.vocab = bundle, spec, vocab
	b.encoder, b.decoder = enc, dec
	logger.Debug().Str("dir", bundle.Dir).Int("vocab", vocab.Size()).Int("image_size", spec.Norm.Size).Msg("onnx sessions ready")
	return nil
}

func (b *onnxBackend) Generate(ctx context.Context, img image.Image, params GenerateParams) ([]string, error) {
	if b.encoder == nil || b.decoder == nil {
		return nil, errors.New("onnx sessions not initialized")
	}
	size := int64(b.spec.Norm.Size)
	pixels, err := ort.NewTensor(ort.NewShape(1, 3, size, size), imaging.PixelValues(img, b.spec.Norm))
	if err != nil {
		return nil, err
	}
	defer pixels.Destroy()
	hidden, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(b.spec.EncoderSeqLen()), int64(b.spec.HiddenSize)))
	if err != nil {
		return nil, err
	}
	defer hidden.Destroy()
	if err := b.encoder.Run([]ort.Value{pixels}, []ort.Value{hidden}); err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	vocab := b.spec.VocabSize
	step := func(ids []int64) (int64, error) {
		input, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), ids)
		if err != nil {
			return 0, err
		}
		defer input.Destroy()
		logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(ids)), int64(vocab)))
		if err != nil {
			return 0, err
		}
		defer logits.Destroy()
		if err := b.decoder.Run([]ort.Value{input, hidden}, []ort.Value{logits}); err != nil {
			return 0, fmt.Errorf("decoder: %w", err)
		}
		return argmaxLast(logits.GetData(), len(ids), vocab), nil
	}
	ids, err := greedyDecode(ctx, b.spec.DecoderStartID, b.spec.EOSID, params.MaxNewTokens, step)
	if err != nil {
		return nil, err
	}
	return []string{b.vocab.Decode(ids, true)}, nil
}

func (b *onnxBackend) Close() error {
	var errs []error
	if b.encoder != nil {
		errs = append(errs, b.encoder.Destroy())
		b.encoder = nil
	}
	if b.decoder != nil {
		errs = append(errs, b.decoder.Destroy())
		b.decoder = nil
	}
	if b.ownsEnv {
		errs = append(errs, ort.DestroyEnvironment())
		b.ownsEnv = false
	}
	return errors.Join(errs...)
}
