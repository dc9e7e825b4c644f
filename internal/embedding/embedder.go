// Package embedding provides CLIP-style visual and text embedding via ONNX, plus caching.
package embedding

import (
	"context"
	"image"
)

// Embedder maps images and text queries into the same vector space, so a text
// query can be compared against frame embeddings.
type Embedder interface {
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
