package dataset

import (
	"log/slog"
	"time"

	"github.com/labelkit/labelkit-server/internal/geometry"
	"github.com/labelkit/labelkit-server/internal/maskcodec"
	"github.com/labelkit/labelkit-server/internal/vocab"
)

// COCOEncoder produces the unified single-document dataset format.
type COCOEncoder struct {
	resolveMask MaskResolver
	logger      *slog.Logger
	now         func() time.Time
}

func NewCOCOEncoder(resolveMask MaskResolver, logger *slog.Logger) *COCOEncoder {
	return &COCOEncoder{resolveMask: resolveMask, logger: logger, now: time.Now}
}

// Encode assembles the dataset document. Image ids and annotation ids
// are 1-based and sequential in iteration order; category ids are
// 1-based in first-seen order. Per-image failures are logged and the
// image excluded; the rest of the export proceeds.
func (e *COCOEncoder) Encode(items []Item) (*COCODataset, error) {
	now := e.now().UTC()

	ds := &COCODataset{
		Info: COCOInfo{
			Description: "labelkit export",
			Version:     "1.0",
			Year:        now.Year(),
			DateCreated: now.Format(time.RFC3339),
		},
		Licenses:    []COCOLicense{{ID: 1, Name: "unknown", URL: ""}},
		Images:      []COCOImage{},
		Annotations: []COCOAnnotation{},
		Categories:  []COCOCategory{},
	}

	voc := vocab.New(1)
	imageID := 0
	annID := 0

	for _, item := range items {
		if len(item.Shapes) == 0 {
			continue
		}

		anns := make([]COCOAnnotation, 0, len(item.Shapes))
		for _, shape := range item.Shapes {
			pts := geometry.Normalize(shape)
			if len(pts) == 0 {
				e.warn("skipping shape without geometry",
					"image_id", item.ImageID, "type", shape.Type)
				continue
			}

			// The polygon derived from the shape's own points is the
			// source of truth for exported geometry, not any bbox the
			// client may have stored.
			box := geometry.BBox(pts)

			ann := COCOAnnotation{
				CategoryID: voc.IDFor(shape.Label),
				BBox:       [4]float64{box.X, box.Y, box.Width, box.Height},
				// Area is the bbox area by convention, not true
				// polygon area.
				Area: box.Width * box.Height,
			}

			ann.Segmentation, ann.IsCrowd = e.segmentation(item, shape, pts)
			anns = append(anns, ann)
		}
		if len(anns) == 0 {
			continue
		}

		imageID++
		img := COCOImage{
			ID:       imageID,
			FileName: item.FileName,
			Width:    item.Width,
			Height:   item.Height,
			License:  1,
		}
		if !item.Uploaded.IsZero() {
			img.DateCaptured = item.Uploaded.UTC().Format(time.RFC3339)
		}
		ds.Images = append(ds.Images, img)

		for _, ann := range anns {
			annID++
			ann.ID = annID
			ann.ImageID = imageID
			ds.Annotations = append(ds.Annotations, ann)
		}
	}

	for _, c := range voc.Classes() {
		ds.Categories = append(ds.Categories, COCOCategory{
			ID:            c.ID,
			Name:          c.Label,
			Supercategory: "none",
		})
	}

	return ds, nil
}

// segmentation picks RLE when the shape references a resolvable mask,
// otherwise the flattened polygon. Shapes with fewer than 3 points get
// an empty polygon list: bbox only.
func (e *COCOEncoder) segmentation(item Item, shape geometry.Shape, pts []geometry.Point) (any, int) {
	if shape.MaskedImageURL != "" && e.resolveMask != nil {
		if path := e.resolveMask(shape.MaskedImageURL); path != "" {
			rle, err := maskcodec.EncodeFile(path)
			if err == nil {
				return rle, 1
			}
			e.warn("mask encode failed, falling back to polygon",
				"image_id", item.ImageID, "mask", shape.MaskedImageURL, "error", err)
		} else {
			e.warn("mask reference unresolvable, falling back to polygon",
				"image_id", item.ImageID, "mask", shape.MaskedImageURL)
		}
	}

	if len(pts) < 3 {
		return [][]float64{}, 0
	}
	return [][]float64{geometry.Flatten(pts)}, 0
}

func (e *COCOEncoder) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
