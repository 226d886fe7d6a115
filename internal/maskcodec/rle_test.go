package maskcodec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func maskPNG(t *testing.T, w, h int, on func(x, y int) bool) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if on(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestEncode_Size(t *testing.T) {
	data := maskPNG(t, 7, 3, func(x, y int) bool { return x == 0 })

	rle, err := Encode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if rle.Size != [2]int{3, 7} {
		t.Fatalf("size = %v, want [3 7] (h, w)", rle.Size)
	}
}

func TestEncode_EmptyMask(t *testing.T) {
	data := maskPNG(t, 4, 2, func(x, y int) bool { return false })

	rle, err := Encode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	counts, err := decodeCounts(rle.Counts)
	if err != nil {
		t.Fatalf("decodeCounts() error = %v", err)
	}
	if len(counts) != 1 || counts[0] != 8 {
		t.Fatalf("counts = %v, want single background run of 8", counts)
	}
}

func TestEncode_FullMask(t *testing.T) {
	data := maskPNG(t, 3, 3, func(x, y int) bool { return true })

	rle, err := Encode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	counts, err := decodeCounts(rle.Counts)
	if err != nil {
		t.Fatalf("decodeCounts() error = %v", err)
	}
	if len(counts) != 2 || counts[0] != 0 || counts[1] != 9 {
		t.Fatalf("counts = %v, want [0 9]", counts)
	}
}

func TestEncode_ColumnMajorRuns(t *testing.T) {
	// 2x2 mask with only the top-right pixel set. Column-major scan
	// order is (0,0) (0,1) (1,0) (1,1), so runs are 2 off, 1 on, 1 off.
	data := maskPNG(t, 2, 2, func(x, y int) bool { return x == 1 && y == 0 })

	rle, err := Encode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	counts, err := decodeCounts(rle.Counts)
	if err != nil {
		t.Fatalf("decodeCounts() error = %v", err)
	}
	want := []uint32{2, 1, 1}
	if len(counts) != len(want) {
		t.Fatalf("counts = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", counts, want)
		}
	}
}

func TestEncodeCounts_RoundTrip(t *testing.T) {
	cases := [][]uint32{
		{0, 9},
		{25},
		{2, 1, 1},
		{100, 200, 300, 400, 5},
		{0, 1, 0, 1, 0, 1},
		{1000000, 2, 1000000},
	}

	for _, counts := range cases {
		s := encodeCounts(counts)
		got, err := decodeCounts(s)
		if err != nil {
			t.Fatalf("decodeCounts(%q) error = %v", s, err)
		}
		if len(got) != len(counts) {
			t.Fatalf("round trip of %v gave %v", counts, got)
		}
		for i := range counts {
			if got[i] != counts[i] {
				t.Fatalf("round trip of %v gave %v", counts, got)
			}
		}
	}
}

func TestEncodeFile_Missing(t *testing.T) {
	if _, err := EncodeFile(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("EncodeFile on missing path expected error")
	}
}

func TestEncodeFile_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(path, []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	if _, err := EncodeFile(path); err == nil {
		t.Fatal("EncodeFile on non-image expected error")
	}
}
