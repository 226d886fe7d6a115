package store

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/labelkit/labelkit-server/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestService_Upload(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	mediaDir := t.TempDir()
	svc := NewService(repo, mediaDir, nil)

	img, err := svc.Upload(context.Background(), "photo.png", bytes.NewReader(testPNG(t, 64, 48)))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if img.ID == "" {
		t.Error("image.ID is empty")
	}
	if img.Width != 64 || img.Height != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", img.Width, img.Height)
	}
	if _, err := os.Stat(filepath.Join(mediaDir, img.Path)); err != nil {
		t.Errorf("stored image not on disk: %v", err)
	}
	if img.ThumbPath == "" {
		t.Error("thumbnail path not set")
	} else if _, err := os.Stat(filepath.Join(mediaDir, img.ThumbPath)); err != nil {
		t.Errorf("thumbnail not on disk: %v", err)
	}

	got, err := svc.GetImage(context.Background(), img.ID)
	if err != nil {
		t.Fatalf("GetImage() error = %v", err)
	}
	if got == nil || got.Filename != "photo.png" {
		t.Fatalf("stored record mismatch: %+v", got)
	}
}

func TestService_Upload_UnsupportedType(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, t.TempDir(), nil)

	if _, err := svc.Upload(context.Background(), "notes.txt", bytes.NewReader([]byte("hi"))); err == nil {
		t.Error("Upload() should reject non-image extensions")
	}
}

func TestService_Upload_CorruptImage(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, t.TempDir(), nil)

	if _, err := svc.Upload(context.Background(), "bad.png", bytes.NewReader([]byte("not a png"))); err == nil {
		t.Error("Upload() should reject undecodable image bytes")
	}
}

func TestService_SaveAnnotations_BackfillsDimensions(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, t.TempDir(), nil)
	ctx := context.Background()

	img, err := svc.Upload(ctx, "photo.png", bytes.NewReader(testPNG(t, 100, 80)))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	// Legacy flat list carries no dimensions; they come from the record.
	raw := []byte(`[{"type":"rect","label":"Car","left":10,"top":20,"width":30,"height":40}]`)
	if err := svc.SaveAnnotations(ctx, img.ID, raw); err != nil {
		t.Fatalf("SaveAnnotations() error = %v", err)
	}

	stored, err := svc.GetImage(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetImage() error = %v", err)
	}

	doc, err := svc.Document(stored)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc.ImageWidth != 100 || doc.ImageHeight != 80 {
		t.Errorf("document dimensions = %dx%d, want 100x80", doc.ImageWidth, doc.ImageHeight)
	}
	if len(doc.Annotations) != 1 || doc.Annotations[0].Label != "Car" {
		t.Errorf("annotations not persisted: %+v", doc.Annotations)
	}
}

func TestService_SaveAnnotations_UnknownImage(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, t.TempDir(), nil)

	if err := svc.SaveAnnotations(context.Background(), "missing", []byte(`[]`)); err == nil {
		t.Error("SaveAnnotations() should fail for unknown image id")
	}
}

func TestService_SaveAnnotations_Malformed(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, t.TempDir(), nil)
	ctx := context.Background()

	img, err := svc.Upload(ctx, "photo.png", bytes.NewReader(testPNG(t, 10, 10)))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if err := svc.SaveAnnotations(ctx, img.ID, []byte(`{"annotations":`)); err == nil {
		t.Error("SaveAnnotations() should reject malformed JSON")
	}
}

func TestService_ListImages_NewestFirst(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, t.TempDir(), nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "a.png", bytes.NewReader(testPNG(t, 4, 4))); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := svc.Upload(ctx, "b.png", bytes.NewReader(testPNG(t, 4, 4))); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	images, err := svc.ListImages(ctx)
	if err != nil {
		t.Fatalf("ListImages() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}

	count, err := svc.CountImages(ctx)
	if err != nil {
		t.Fatalf("CountImages() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountImages() = %d, want 2", count)
	}
}

func TestService_ResolveMediaURL(t *testing.T) {
	mediaDir := t.TempDir()
	svc := NewService(nil, mediaDir, nil)

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "media prefix", url: "/media/masks/m.png", want: filepath.Join(mediaDir, "masks", "m.png")},
		{name: "relative", url: "masks/m.png", want: filepath.Join(mediaDir, "masks", "m.png")},
		{name: "empty", url: "", want: ""},
		{name: "traversal", url: "/media/../../etc/passwd", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.ResolveMediaURL(tc.url); got != tc.want {
				t.Fatalf("ResolveMediaURL(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}
