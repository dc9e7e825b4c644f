// Package archive stores retired frames as thumbnails referenced by records.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidRef is returned for references that escape the archive directory.
var ErrInvalidRef = errors.New("invalid archive reference")

// DefaultCompressWorkers bounds the goroutines used by Compress.
const DefaultCompressWorkers = 4

// Archive lays frames out as <dir>/YYYY/MM/DD/<id>.<ext>.
type Archive struct {
	dir     string
	width   int
	quality int
}

// New returns an archive rooted at dir. Frames wider than width are downscaled; a width
// of zero or less keeps the full frame as PNG.
func New(dir string, width, quality int) *Archive {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Archive{dir: dir, width: width, quality: quality}
}

// Dir returns the archive root.
func (a *Archive) Dir() string {
	return a.dir
}

// Ref returns the relative reference a frame will be stored under.
func (a *Archive) Ref(id string, capturedAt time.Time) string {
	ext := ".jpg"
	if a.width <= 0 {
		ext = ".png"
	}
	return filepath.ToSlash(filepath.Join(capturedAt.UTC().Format("2006/01/02"), id+ext))
}

// Store writes the frame for ref. original is written as-is when no downscaling applies.
func (a *Archive) Store(ref string, img image.Image, original []byte) error {
	path, err := a.path(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	var data []byte
	if strings.HasSuffix(ref, ".png") {
		data = original
		if data == nil {
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return fmt.Errorf("failed to encode frame: %w", err)
			}
			data = buf.Bytes()
		}
	} else {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, Thumbnail(img, a.width), &jpeg.Options{Quality: a.quality}); err != nil {
			return fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		data = buf.Bytes()
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}

// Resolve returns the file backing ref. A PNG reference that has since been compressed
// resolves to its JPEG sibling.
func (a *Archive) Resolve(ref string) (string, error) {
	path, err := a.path(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if strings.HasSuffix(path, ".png") {
		alt := strings.TrimSuffix(path, ".png") + ".jpg"
		if _, err := os.Stat(alt); err == nil {
			return alt, nil
		}
	}
	return "", fmt.Errorf("archive file %s: %w", ref, fs.ErrNotExist)
}

func (a *Archive) path(ref string) (string, error) {
	if ref == "" || filepath.IsAbs(ref) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(a.dir, clean), nil
}

// Clear removes every archived frame.
func (a *Archive) Clear() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read archive: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(a.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear archive: %w", err)
		}
	}
	return nil
}

// Count returns the number of archived frames.
func (a *Archive) Count() (int, error) {
	n := 0
	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && isFrame(path) {
			n++
		}
		return nil
	})
	return n, err
}

func isFrame(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// Compress re-encodes every PNG in the archive as a JPEG sibling and removes the PNG.
// It returns the number of files converted. Files that fail to convert are left in place
// and reported in the joined error.
func (a *Archive) Compress(ctx context.Context, workers int) (int, error) {
	if workers <= 0 {
		workers = DefaultCompressWorkers
	}
	var pngs []string
	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".png") {
			pngs = append(pngs, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan archive: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	results := make([]error, len(pngs))
	for i, path := range pngs {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.convert(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	converted := 0
	var errs []error
	for i, err := range results {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pngs[i], err))
			continue
		}
		converted++
	}
	return converted, errors.Join(errs...)
}

func (a *Archive) convert(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	dst := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.quality}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Remove(path)
}

// Thumbnail scales img down to width, keeping the aspect ratio. Images already narrow
// enough are returned unchanged.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
