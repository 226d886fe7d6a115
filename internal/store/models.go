package store

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Image is one uploaded image and its wholesale-stored annotation
// document (raw JSON, any historical schema version).
type Image struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	ThumbPath   string    `json:"thumb_path,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Annotations []byte    `json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

func IsImageFile(filename string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(filename))]
}
