// Package maskcodec turns binary raster mask images into compressed
// run-length encoded records compatible with common segmentation
// dataset tooling.
package maskcodec

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// RLE is a compressed run-length encoding of a binary pixel mask.
// Size is [height, width]; Counts is the text-encoded run string.
type RLE struct {
	Size   [2]int `json:"size"`
	Counts string `json:"counts"`
}

// EncodeFile reads and encodes the mask image at path. Callers are
// expected to treat any error as "no mask" and fall back to polygon
// segmentation.
func EncodeFile(path string) (*RLE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mask: %w", err)
	}
	defer f.Close()
	return Encode(f)
}

// Encode decodes a mask image from r, binarizes it (pixel > 0) and
// returns its compressed RLE record.
func Encode(r io.Reader) (*RLE, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	return encodeImage(img), nil
}

func encodeImage(img image.Image) *RLE {
	// Threshold at 1 so any non-zero pixel counts as foreground.
	gray := segment.Threshold(img, 1)

	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Runs are counted in column-major pixel order and always start
	// with a (possibly zero-length) background run.
	counts := make([]uint32, 0, 16)
	var run uint32
	inMask := false
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			on := gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y > 0
			if on != inMask {
				counts = append(counts, run)
				run = 0
				inMask = on
			}
			run++
		}
	}
	counts = append(counts, run)

	return &RLE{Size: [2]int{h, w}, Counts: encodeCounts(counts)}
}

// encodeCounts packs run lengths into the conventional printable byte
// string: each value (delta-coded against the run two places back) is
// emitted as 5-bit groups with a continuation bit, offset into ASCII
// at '0'.
func encodeCounts(counts []uint32) string {
	out := make([]byte, 0, len(counts)*2)
	for i, c := range counts {
		x := int64(c)
		if i > 2 {
			x -= int64(counts[i-2])
		}
		for more := true; more; {
			ch := byte(x & 0x1f)
			x >>= 5
			if ch&0x10 != 0 {
				more = x != -1
			} else {
				more = x != 0
			}
			if more {
				ch |= 0x20
			}
			out = append(out, ch+48)
		}
	}
	return string(out)
}

// decodeCounts reverses encodeCounts. Kept alongside the encoder so the
// encoding invariants are checkable.
func decodeCounts(s string) ([]uint32, error) {
	var counts []uint32
	for i := 0; i < len(s); {
		var x int64
		var shift uint
		more := true
		for more {
			if i >= len(s) {
				return nil, fmt.Errorf("truncated counts string")
			}
			ch := int64(s[i]) - 48
			if ch < 0 || ch > 63 {
				return nil, fmt.Errorf("invalid counts byte %q", s[i])
			}
			i++
			x |= (ch & 0x1f) << shift
			more = ch&0x20 != 0
			shift += 5
			if !more && ch&0x10 != 0 {
				x |= -1 << shift
			}
		}
		if len(counts) > 2 {
			x += int64(counts[len(counts)-2])
		}
		counts = append(counts, uint32(x))
	}
	return counts, nil
}
