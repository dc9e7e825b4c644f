package embedding

import (
	"context"
	"image"
	"math"

	"github.com/hyperjump/rewind/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from a hash of the text (or of sampled pixels) so that the same
// input always gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedText returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.fromSeed(HashString(text)), nil
}

// EmbedImage returns a deterministic embedding based on a hash of sampled pixels.
func (e *MockEmbedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	return e.fromSeed(hashImage(img)), nil
}

func (e *MockEmbedder) fromSeed(h int) []float32 {
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// hashImage hashes an 8x8 grid of pixel samples.
func hashImage(img image.Image) int {
	b := img.Bounds()
	h := b.Dx()*31 + b.Dy()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			px := b.Min.X + x*b.Dx()/8
			py := b.Min.Y + y*b.Dy()/8
			r, g, bl, _ := img.At(px, py).RGBA()
			h = 31*h + int(r>>8)
			h = 31*h + int(g>>8)
			h = 31*h + int(bl>>8)
			h &= math.MaxInt32
		}
	}
	return h
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
