// Package annotation defines the canonical per-image annotation
// document and the migration layer that lifts legacy document shapes
// into it before any encoder sees them.
package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/labelkit/labelkit-server/internal/geometry"
)

// SchemaVersion is the current document format version.
const SchemaVersion = 3

// Document is the canonical annotation record for one image. It is
// written wholesale when a user finalizes edits and is read-only during
// export.
type Document struct {
	SchemaVersion int              `json:"schema_version"`
	ImageWidth    int              `json:"image_width"`
	ImageHeight   int              `json:"image_height"`
	Annotations   []geometry.Shape `json:"annotations"`
}

// rawShape tolerates the field spellings the document formats have used
// over time: points under "points" or "coordinates", dimensions as
// floats or ints.
type rawShape struct {
	Type           string           `json:"type"`
	Label          string           `json:"label"`
	Points         []geometry.Point `json:"points"`
	Coordinates    []geometry.Point `json:"coordinates"`
	Left           float64          `json:"left"`
	Top            float64          `json:"top"`
	Width          float64          `json:"width"`
	Height         float64          `json:"height"`
	Radius         float64          `json:"radius"`
	MaskedImageURL string           `json:"masked_image_url"`
	Confidence     float64          `json:"confidence"`
}

func (r rawShape) toShape() geometry.Shape {
	pts := r.Points
	if len(pts) == 0 {
		pts = r.Coordinates
	}
	return geometry.Shape{
		Type:           r.Type,
		Label:          r.Label,
		Points:         pts,
		Left:           r.Left,
		Top:            r.Top,
		Width:          r.Width,
		Height:         r.Height,
		Radius:         r.Radius,
		MaskedImageURL: r.MaskedImageURL,
		Confidence:     r.Confidence,
	}
}

// rawDocument covers both object-style legacy formats in one pass:
// v2 {meta, shapes} and v3 {image_width/imagewidth, annotations}.
type rawDocument struct {
	SchemaVersion int `json:"schema_version"`

	ImageWidth   int `json:"image_width"`
	ImageHeight  int `json:"image_height"`
	ImageWidthV2 int `json:"imagewidth"`
	ImageHeightV2 int `json:"imageheight"`

	Annotations []rawShape `json:"annotations"`

	Meta *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"meta"`
	Shapes []rawShape `json:"shapes"`
}

// Parse reads an annotation document in any historical format and
// returns the canonical form:
//
//	v1: bare JSON array of shapes (no stored dimensions)
//	v2: {"meta": {...}, "shapes": [...]}
//	v3: {"image_width": ..., "annotations": [...]}
//
// A nil or empty payload parses to an empty current-version document.
func Parse(data []byte) (*Document, error) {
	doc := &Document{SchemaVersion: SchemaVersion}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return doc, nil
	}

	if trimmed[0] == '[' {
		var shapes []rawShape
		if err := json.Unmarshal(trimmed, &shapes); err != nil {
			return nil, fmt.Errorf("parse legacy shape list: %w", err)
		}
		doc.Annotations = convertShapes(shapes)
		return doc, nil
	}

	var raw rawDocument
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("parse annotation document: %w", err)
	}

	switch {
	case raw.Shapes != nil || raw.Meta != nil:
		doc.Annotations = convertShapes(raw.Shapes)
		if raw.Meta != nil {
			doc.ImageWidth = raw.Meta.Width
			doc.ImageHeight = raw.Meta.Height
		}
	default:
		doc.Annotations = convertShapes(raw.Annotations)
		doc.ImageWidth = raw.ImageWidth
		doc.ImageHeight = raw.ImageHeight
		if doc.ImageWidth == 0 {
			doc.ImageWidth = raw.ImageWidthV2
		}
		if doc.ImageHeight == 0 {
			doc.ImageHeight = raw.ImageHeightV2
		}
	}

	return doc, nil
}

func convertShapes(raw []rawShape) []geometry.Shape {
	if len(raw) == 0 {
		return nil
	}
	shapes := make([]geometry.Shape, 0, len(raw))
	for _, r := range raw {
		shapes = append(shapes, r.toShape())
	}
	return shapes
}

// Encode serializes a canonical document for storage.
func Encode(doc *Document) ([]byte, error) {
	doc.SchemaVersion = SchemaVersion
	return json.Marshal(doc)
}
