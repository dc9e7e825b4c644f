package capture

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// MaxDistance is the largest possible distance between two fingerprints.
const MaxDistance = 64

// Fingerprint is a 64-bit DCT perceptual hash of a frame.
type Fingerprint struct {
	hash *goimagehash.ImageHash
}

// NewFingerprint hashes img.
func NewFingerprint(img image.Image) (Fingerprint, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("perceptual hash: %w", err)
	}
	return Fingerprint{hash: h}, nil
}

// FingerprintFromUint64 rebuilds a fingerprint from its raw bits.
func FingerprintFromUint64(v uint64) Fingerprint {
	return Fingerprint{hash: goimagehash.NewImageHash(v, goimagehash.PHash)}
}

// Distance returns the Hamming distance in bits, 0 to MaxDistance.
func (f Fingerprint) Distance(other Fingerprint) int {
	if f.hash == nil || other.hash == nil {
		return MaxDistance
	}
	d, err := f.hash.Distance(other.hash)
	if err != nil {
		return MaxDistance
	}
	return d
}

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f.hash == nil
}

// String returns the hash as 16 hex digits.
func (f Fingerprint) String() string {
	if f.hash == nil {
		return ""
	}
	return fmt.Sprintf("%016x", f.hash.GetHash())
}
