package types

// ModelInfo describes the captioning model loaded by the process.
type ModelInfo struct {
	// Stable identifier reported in every caption response.
	// example: ydshieh/vit-gpt2-coco-en
	ID string `json:"id" example:"ydshieh/vit-gpt2-coco-en"`
	// Runtime used to execute the model (onnx or remote).
	// example: onnx
	Backend string `json:"backend" example:"onnx"`
	// Model bundle directory or remote endpoint.
	// example: /var/lib/captiond/vit-gpt2-coco-en
	Location string `json:"location,omitempty" example:"/var/lib/captiond/vit-gpt2-coco-en"`
}
