// Package e2e drives a scripted screen session through capture, ingestion, search and wipe.
// This file renders synthetic frames.
package e2e

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"math/rand"
)

// FrameSize is the edge length of generated frames in pixels.
const FrameSize = 64

// RenderFrame returns a PNG of an 8x8 grid of random gray blocks. Different seeds give
// perceptually distinct frames; the same seed gives identical bytes.
func RenderFrame(seed int64) ([]byte, error) {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, FrameSize, FrameSize))
	cell := FrameSize / 8
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			v := color.Gray{Y: uint8(rng.Intn(256))}
			for y := by * cell; y < (by+1)*cell; y++ {
				for x := bx * cell; x < (bx+1)*cell; x++ {
					img.SetGray(x, y, v)
				}
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FrameKey identifies frame bytes, so fakes can map a frame back to its scripted text.
func FrameKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
