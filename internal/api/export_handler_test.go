package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labelkit/labelkit-server/internal/store"
)

func annotatedImage(id string) *store.Image {
	return &store.Image{
		ID:       id,
		Filename: id + ".jpg",
		Path:     "images/" + id + ".jpg",
		Width:    100,
		Height:   100,
		Annotations: []byte(`{"image_width":100,"image_height":100,"annotations":[` +
			`{"type":"rect","label":"car","left":10,"top":20,"width":30,"height":40}]}`),
		UploadedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestExportHandler_UnknownFormat(t *testing.T) {
	rr := newRouterRequest(t, testConfig(newFakeImages()), http.MethodGet, "/export/pascal", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "BAD_REQUEST" {
		t.Fatalf("code = %v, want BAD_REQUEST", body["code"])
	}
}

func TestExportHandler_StoreError(t *testing.T) {
	images := newFakeImages()
	images.listErr = errors.New("db gone")

	rr := newRouterRequest(t, testConfig(images), http.MethodGet, "/export/yolo", nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestExportHandler_YOLO(t *testing.T) {
	images := newFakeImages()
	images.mediaDir = t.TempDir()
	img := annotatedImage("a1")
	images.add(img)

	dir := filepath.Join(images.mediaDir, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a1.jpg"), []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rr := newRouterRequest(t, testConfig(images), http.MethodGet, "/export/yolo", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("content-type = %q, want application/zip", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(got, `attachment; filename="labelkit-yolo-`) {
		t.Fatalf("content-disposition = %q", got)
	}

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}

	label, ok := files["labels/a1.txt"]
	if !ok {
		t.Fatalf("labels/a1.txt missing, got files %v", zr.File)
	}
	if !strings.HasPrefix(label, "0 ") {
		t.Fatalf("label line = %q, want class 0", label)
	}
	if got := files["classes.txt"]; got != "car\n" {
		t.Fatalf("classes.txt = %q, want %q", got, "car\n")
	}
	if got := files["images/a1.jpg"]; got != "jpeg-bytes" {
		t.Fatalf("images/a1.jpg = %q, want jpeg-bytes", got)
	}
	if _, ok := files["data.yaml"]; !ok {
		t.Fatal("data.yaml missing")
	}
}

func TestExportHandler_COCO(t *testing.T) {
	images := newFakeImages()
	images.mediaDir = t.TempDir()
	images.add(annotatedImage("a1"))

	rr := newRouterRequest(t, testConfig(images), http.MethodGet, "/export/coco", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content-type = %q, want application/json", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(got, `attachment; filename="labelkit-coco-`) {
		t.Fatalf("content-disposition = %q", got)
	}

	var doc struct {
		Images      []map[string]any `json:"images"`
		Annotations []map[string]any `json:"annotations"`
		Categories  []map[string]any `json:"categories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if len(doc.Images) != 1 || len(doc.Annotations) != 1 || len(doc.Categories) != 1 {
		t.Fatalf("images/annotations/categories = %d/%d/%d, want 1/1/1",
			len(doc.Images), len(doc.Annotations), len(doc.Categories))
	}
	if got := doc.Categories[0]["name"]; got != "car" {
		t.Fatalf("category name = %v, want car", got)
	}
}

func TestExportHandler_SkipsUnparseableAnnotations(t *testing.T) {
	images := newFakeImages()
	images.mediaDir = t.TempDir()
	images.add(annotatedImage("a1"))
	images.add(&store.Image{
		ID:          "bad",
		Filename:    "bad.jpg",
		Path:        "images/bad.jpg",
		Annotations: []byte("{corrupt"),
	})

	rr := newRouterRequest(t, testConfig(images), http.MethodGet, "/export/coco", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var doc struct {
		Images []map[string]any `json:"images"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if len(doc.Images) != 1 {
		t.Fatalf("len(images) = %d, want 1", len(doc.Images))
	}
}
