// Package extract provides OCR text extraction from captured frames.
package extract

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hyperjump/rewind/pkg/utils"
)

// OCR extracts visible text from an image. An image without text yields "" and no error.
type OCR interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
	ExtractTextFromBytes(ctx context.Context, data []byte) (string, error)
}

// TesseractOCR shells out to the tesseract CLI, feeding the image on stdin.
type TesseractOCR struct {
	command  string
	language string
	timeout  time.Duration
	run      utils.CommandRunner
}

// Option configures a TesseractOCR.
type Option func(*TesseractOCR)

// WithRunner replaces the command runner (tests).
func WithRunner(run utils.CommandRunner) Option {
	return func(o *TesseractOCR) {
		o.run = run
	}
}

// NewTesseractOCR returns an OCR backed by the tesseract binary at command.
func NewTesseractOCR(command, language string, timeout time.Duration, opts ...Option) *TesseractOCR {
	if command == "" {
		command = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	o := &TesseractOCR{command: command, language: language, timeout: timeout, run: utils.RunCommand}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExtractText reads the image at imagePath and runs OCR on it.
func (o *TesseractOCR) ExtractText(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return o.ExtractTextFromBytes(ctx, data)
}

// ExtractTextFromBytes runs OCR on encoded image bytes and returns cleaned text.
func (o *TesseractOCR) ExtractTextFromBytes(ctx context.Context, data []byte) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	out, err := o.run(ctx, []string{o.command, "stdin", "stdout", "-l", o.language, "--psm", "3"}, data)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return CleanText(out), nil
}
