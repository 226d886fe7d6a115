package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/labelkit/labelkit-server/internal/dataset"
	"github.com/labelkit/labelkit-server/internal/logging"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := chi.URLParam(r, "format")

		switch format {
		case "yolo", "coco":
		default:
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown export format %q", format), "BAD_REQUEST")
			return
		}

		log := logging.WithExportFormat(cfg.Logger, format)

		items, err := collectItems(cfg, r)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load images", "INTERNAL_ERROR")
			return
		}
		log.Info("export requested", "images", len(items))

		stamp := time.Now().UTC().Format("20060102-150405")

		switch format {
		case "yolo":
			enc := dataset.NewYOLOEncoder(cfg.Logger)
			data, err := enc.Encode(items)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "EXPORT_FAILED")
				return
			}
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Disposition",
				fmt.Sprintf(`attachment; filename="labelkit-yolo-%s.zip"`, stamp))
			w.WriteHeader(http.StatusOK)
			w.Write(data)

		case "coco":
			enc := dataset.NewCOCOEncoder(cfg.Images.ResolveMediaURL, cfg.Logger)
			doc, err := enc.Encode(items)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "EXPORT_FAILED")
				return
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "EXPORT_FAILED")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Disposition",
				fmt.Sprintf(`attachment; filename="labelkit-coco-%s.json"`, stamp))
			w.WriteHeader(http.StatusOK)
			w.Write(data)
		}
	}
}

// collectItems loads every stored image and its parsed annotation
// document. Images whose stored annotations fail to parse are skipped
// with a warning rather than failing the whole export.
func collectItems(cfg ServerConfig, r *http.Request) ([]dataset.Item, error) {
	images, err := cfg.Images.ListImages(r.Context())
	if err != nil {
		return nil, err
	}

	items := make([]dataset.Item, 0, len(images))
	for _, img := range images {
		doc, err := cfg.Images.Document(img)
		if err != nil {
			logging.WithImageID(cfg.Logger, img.ID).Warn(
				"skipping image with unparseable annotations", "error", err)
			continue
		}
		items = append(items, dataset.Item{
			ImageID:   img.ID,
			FileName:  img.Filename,
			ImagePath: cfg.Images.MediaPath(img),
			Width:     doc.ImageWidth,
			Height:    doc.ImageHeight,
			Uploaded:  img.UploadedAt,
			Shapes:    doc.Annotations,
		})
	}
	return items, nil
}
