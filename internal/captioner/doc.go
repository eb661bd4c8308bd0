// Package captioner owns the process-wide image captioning model. It is
// structured into small files by concern:
//
//   - captioner.go: Captioner type, Open/Load, Caption, status getters.
//   - config.go: Config and package defaults.
//   - backend.go: Backend interface implemented by model runtimes.
//   - errors.go: error types and helpers (IsInference, IsDependencyUnavailable).
//   - generation.go: bundle config parsing and greedy decoding helpers.
//   - remote_backend.go: HTTP inference endpoints (Hugging Face or another captiond).
//   - metrics.go, logging.go: Prometheus collectors and the structured logger.
//
// Build tags and runtimes:
//
//   - In-process ONNX Runtime:
//     Uses github.com/yalue/onnxruntime_go. Enabled with `-tags=onnx`.
//     File: onnx_backend.go. A stub (onnx_backend_stub.go) is compiled
//     otherwise and fails Load with a dependency-unavailable error.
//
// The model is loaded once by Open and then shared by every request. Inference
// calls are serialized through a single slot; the ONNX sessions are not
// assumed to be reentrant.
package captioner
