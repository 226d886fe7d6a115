// Package dataset assembles annotation documents into downloadable
// training-dataset artifacts: a YOLO-style archive of per-image label
// files and a COCO-style unified JSON document.
package dataset

import (
	"time"

	"github.com/labelkit/labelkit-server/internal/geometry"
)

// Item is one image plus its canonicalized annotations, as handed to an
// encoder. Items with no shapes are excluded from every output format.
type Item struct {
	ImageID   string
	FileName  string
	ImagePath string
	Width     int
	Height    int
	Uploaded  time.Time
	Shapes    []geometry.Shape
}

// MaskResolver maps a shape's mask reference to a readable local file
// path. An empty result means the mask is unavailable and the encoder
// falls back to polygon segmentation.
type MaskResolver func(url string) string

// COCODataset is the unified single-document export format.
type COCODataset struct {
	Info        COCOInfo         `json:"info"`
	Licenses    []COCOLicense    `json:"licenses"`
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

type COCOInfo struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	Year        int    `json:"year"`
	DateCreated string `json:"date_created"`
}

type COCOLicense struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type COCOImage struct {
	ID           int    `json:"id"`
	FileName     string `json:"file_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	DateCaptured string `json:"date_captured,omitempty"`
	License      int    `json:"license"`
}

// COCOAnnotation carries either polygon segmentation ([][]float64) or a
// compressed RLE record (*maskcodec.RLE) in Segmentation.
type COCOAnnotation struct {
	ID           int        `json:"id"`
	ImageID      int        `json:"image_id"`
	CategoryID   int        `json:"category_id"`
	Segmentation any        `json:"segmentation"`
	Area         float64    `json:"area"`
	BBox         [4]float64 `json:"bbox"`
	IsCrowd      int        `json:"iscrowd"`
}

type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}
