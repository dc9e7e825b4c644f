package benchmark

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"strings"
	"testing"

	"github.com/hyperjump/rewind/internal/capture"
	"github.com/hyperjump/rewind/internal/embedding"
	"github.com/hyperjump/rewind/internal/search"
	"github.com/hyperjump/rewind/internal/vector"
)

func scoredLists(n int) (text, visual []search.Scored) {
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("rec-%04d", i)
		if i%2 == 0 {
			text = append(text, search.Scored{ID: id, Score: float64(n-i) / float64(n)})
		}
		if i%3 == 0 {
			visual = append(visual, search.Scored{ID: id, Score: float64(i) / float64(n)})
		}
	}
	return text, visual
}

func BenchmarkFuse(b *testing.B) {
	text, visual := scoredLists(200)
	for _, policy := range []string{search.FusionMax, search.FusionRRF} {
		b.Run(policy, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = search.Fuse(text, visual, policy)
			}
		})
	}
}

func BenchmarkMemoryIndexSearch(b *testing.B) {
	idx, _ := vector.NewMemoryIndex(512)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	vecs := make([][]float32, 5000)
	ids := make([]string, 5000)
	for i := range vecs {
		vecs[i] = make([]float32, 512)
		for j := range vecs[i] {
			vecs[i][j] = rng.Float32() - 0.5
		}
		ids[i] = fmt.Sprintf("rec-%05d", i)
	}
	_ = idx.Add(ctx, ids, vecs)
	query := vecs[42]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 30)
	}
}

func BenchmarkFingerprint(b *testing.B) {
	img := image.NewGray(image.Rect(0, 0, 1920, 1080))
	rng := rand.New(rand.NewSource(2))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = capture.NewFingerprint(img)
	}
}

func BenchmarkSnippet(b *testing.B) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 400) + "needle in the haystack " + strings.Repeat("consectetur adipiscing ", 200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Snippet(text, "needle", 200)
	}
}

func BenchmarkMockEmbedder_EmbedText(b *testing.B) {
	e := embedding.NewMockEmbedder(512)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EmbedText(ctx, "red bar chart in quarterly slides")
	}
}
