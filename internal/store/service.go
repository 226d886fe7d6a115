package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/labelkit/labelkit-server/internal/annotation"
)

const thumbSize = 320

// ImageService is the store-facing surface the API and export pipeline
// depend on.
type ImageService interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*Image, error)
	SaveAnnotations(ctx context.Context, id string, raw []byte) error
	GetImage(ctx context.Context, id string) (*Image, error)
	ListImages(ctx context.Context) ([]*Image, error)
	CountImages(ctx context.Context) (int, error)
	Document(img *Image) (*annotation.Document, error)
	ResolveMediaURL(url string) string
	MediaPath(img *Image) string
}

type Service struct {
	repo     Repository
	mediaDir string
	logger   *slog.Logger
}

func NewService(repo Repository, mediaDir string, logger *slog.Logger) *Service {
	return &Service{repo: repo, mediaDir: mediaDir, logger: logger}
}

// Upload stores the image bytes under the media directory, derives the
// pixel dimensions, renders a bounded thumbnail for listings and
// creates the database record.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*Image, error) {
	if !IsImageFile(filename) {
		return nil, fmt.Errorf("unsupported image type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	bounds := img.Bounds()

	id := NewID()
	ext := strings.ToLower(filepath.Ext(filename))
	relPath := filepath.Join("images", id+ext)
	absPath := filepath.Join(s.mediaDir, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	// Thumbnail failures are non-fatal: listings fall back to the
	// original image.
	thumbRel := ""
	thumbAbs := filepath.Join(s.mediaDir, "thumbs", id+".jpg")
	if err := os.MkdirAll(filepath.Dir(thumbAbs), 0755); err == nil {
		thumb := imaging.Fit(img, thumbSize, thumbSize, imaging.Lanczos)
		if err := imaging.Save(thumb, thumbAbs); err == nil {
			thumbRel = filepath.Join("thumbs", id+".jpg")
		} else if s.logger != nil {
			s.logger.Warn("thumbnail generation failed", "image_id", id, "error", err)
		}
	}

	record := &Image{
		ID:         id,
		Filename:   filepath.Base(filename),
		Path:       relPath,
		ThumbPath:  thumbRel,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		UploadedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateImage(ctx, record); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("image uploaded", "image_id", id, "filename", record.Filename,
			"width", record.Width, "height", record.Height)
	}
	return record, nil
}

// SaveAnnotations overwrites the image's annotation document wholesale.
// The payload may be in any historical schema version; it is migrated
// to the canonical form before storage.
func (s *Service) SaveAnnotations(ctx context.Context, id string, raw []byte) error {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("image not found")
	}

	doc, err := annotation.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid annotation document: %w", err)
	}

	// Stored image dimensions win over whatever the client sent.
	if doc.ImageWidth == 0 {
		doc.ImageWidth = img.Width
	}
	if doc.ImageHeight == 0 {
		doc.ImageHeight = img.Height
	}

	encoded, err := annotation.Encode(doc)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateAnnotations(ctx, id, encoded); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("annotations saved", "image_id", id, "shapes", len(doc.Annotations))
	}
	return nil
}

func (s *Service) GetImage(ctx context.Context, id string) (*Image, error) {
	return s.repo.GetImage(ctx, id)
}

func (s *Service) ListImages(ctx context.Context) ([]*Image, error) {
	return s.repo.ListImages(ctx)
}

func (s *Service) CountImages(ctx context.Context) (int, error) {
	return s.repo.CountImages(ctx)
}

// Document returns the canonical annotation document for an image,
// backfilling dimensions from the stored record.
func (s *Service) Document(img *Image) (*annotation.Document, error) {
	doc, err := annotation.Parse(img.Annotations)
	if err != nil {
		return nil, err
	}
	if doc.ImageWidth == 0 {
		doc.ImageWidth = img.Width
	}
	if doc.ImageHeight == 0 {
		doc.ImageHeight = img.Height
	}
	return doc, nil
}

// ResolveMediaURL maps a stored media URL or relative path to an
// absolute path under the media directory. Returns "" for anything
// that would escape it.
func (s *Service) ResolveMediaURL(url string) string {
	if url == "" {
		return ""
	}
	rel := strings.TrimPrefix(url, "/media/")
	rel = strings.TrimPrefix(rel, "media/")
	rel = filepath.FromSlash(rel)

	abs := filepath.Join(s.mediaDir, rel)
	cleanRoot := filepath.Clean(s.mediaDir) + string(filepath.Separator)
	if !strings.HasPrefix(abs, cleanRoot) {
		return ""
	}
	return abs
}

// MediaPath returns the absolute path of a stored image file.
func (s *Service) MediaPath(img *Image) string {
	return filepath.Join(s.mediaDir, img.Path)
}
