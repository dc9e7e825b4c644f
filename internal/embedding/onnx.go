//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/rewind/pkg/utils"
)

// ONNXOptions configures the CLIP embedder.
type ONNXOptions struct {
	VisualModelPath string
	TextModelPath   string
	Dimensions      int
	ImageSize       int
	ContextLength   int
	CacheSize       int
	// Tokenizer defaults to HashTokenizer when nil.
	Tokenizer Tokenizer
}

// ONNXEmbedder runs the two halves of a CLIP model with ONNX Runtime: the vision encoder
// for frames and the text encoder for queries. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	opts   ONNXOptions
	cache  *EmbeddingCache
	visual *ort.AdvancedSession
	text   *ort.AdvancedSession
	// Pre-allocated tensors for Run(); we update input data and read output.
	pixelTensor    *ort.Tensor[float32]
	imageOutTensor *ort.Tensor[float32]
	idsTensor      *ort.Tensor[int64]
	maskTensor     *ort.Tensor[int64]
	textOutTensor  *ort.Tensor[float32]
	visualMu       sync.Mutex
	textMu         sync.Mutex
}

// NewONNXEmbedder creates a CLIP embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = &HashTokenizer{}
	}
	e := &ONNXEmbedder{opts: opts, cache: NewEmbeddingCache(opts.CacheSize)}

	var err error
	size := int64(opts.ImageSize)
	e.pixelTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	e.imageOutTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Dimensions)))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create image_embeds tensor: %w", err)
	}
	e.visual, err = ort.NewAdvancedSession(
		opts.VisualModelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{e.pixelTensor},
		[]ort.ArbitraryTensor{e.imageOutTensor},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create visual ONNX session: %w", err)
	}

	ctxLen := int64(opts.ContextLength)
	e.idsTensor, err = ort.NewEmptyTensor[int64](ort.NewShape(1, ctxLen))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	e.maskTensor, err = ort.NewEmptyTensor[int64](ort.NewShape(1, ctxLen))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	e.textOutTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Dimensions)))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create text_embeds tensor: %w", err)
	}
	e.text, err = ort.NewAdvancedSession(
		opts.TextModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.idsTensor, e.maskTensor},
		[]ort.ArbitraryTensor{e.textOutTensor},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create text ONNX session: %w", err)
	}
	return e, nil
}

// EmbedImage returns the normalized CLIP embedding of a frame.
func (e *ONNXEmbedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pixels := PreprocessCLIP(img, e.opts.ImageSize)

	e.visualMu.Lock()
	defer e.visualMu.Unlock()
	copy(e.pixelTensor.GetData(), pixels)
	if err := e.visual.Run(); err != nil {
		return nil, fmt.Errorf("visual inference failed: %w", err)
	}
	embedding := make([]float32, e.opts.Dimensions)
	copy(embedding, e.imageOutTensor.GetData())
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// EmbedText returns the normalized CLIP embedding of a query, using cache when available.
func (e *ONNXEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	ids, mask := e.opts.Tokenizer.Encode(text, e.opts.ContextLength)

	e.textMu.Lock()
	defer e.textMu.Unlock()
	copy(e.idsTensor.GetData(), ids)
	copy(e.maskTensor.GetData(), mask)
	if err := e.text.Run(); err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	embedding := make([]float32, e.opts.Dimensions)
	copy(embedding, e.textOutTensor.GetData())
	utils.NormalizeL2(embedding)
	e.cache.Set(text, embedding)
	return embedding, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.opts.Dimensions
}

// Close destroys the sessions and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.visual != nil {
		err = e.visual.Destroy()
		e.visual = nil
	}
	if e.text != nil {
		if terr := e.text.Destroy(); err == nil {
			err = terr
		}
		e.text = nil
	}
	if e.pixelTensor != nil {
		_ = e.pixelTensor.Destroy()
		e.pixelTensor = nil
	}
	if e.imageOutTensor != nil {
		_ = e.imageOutTensor.Destroy()
		e.imageOutTensor = nil
	}
	if e.idsTensor != nil {
		_ = e.idsTensor.Destroy()
		e.idsTensor = nil
	}
	if e.maskTensor != nil {
		_ = e.maskTensor.Destroy()
		e.maskTensor = nil
	}
	if e.textOutTensor != nil {
		_ = e.textOutTensor.Destroy()
		e.textOutTensor = nil
	}
	return err
}
