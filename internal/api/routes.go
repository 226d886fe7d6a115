package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/labelkit/labelkit-server/internal/config"
	"github.com/labelkit/labelkit-server/internal/detect"
)

// maxAnnotationBody bounds a save-annotations payload.
const maxAnnotationBody = 16 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/media/*", mediaHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/images", listImagesHandler(cfg))
		r.Post("/images", uploadImageHandler(cfg))
		r.Get("/images/{id}", getImageHandler(cfg))
		r.Put("/images/{id}/annotations", saveAnnotationsHandler(cfg))
		r.Post("/images/{id}/detect", detectHandler(cfg))
		r.Get("/export/{format}", exportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		count, _ := cfg.Images.CountImages(r.Context())

		detectorAvailable := cfg.Detector != nil && cfg.Detector.Available()

		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:      "ok",
			Version:     config.Version,
			UptimeS:     uptime,
			ImagesCount: count,
			Detector:    detectorAvailable,
		})
	}
}

func listImagesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		images, err := cfg.Images.ListImages(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list images", "INTERNAL_ERROR")
			return
		}

		resp := ImagesResponse{Images: make([]ImageResponse, len(images))}
		for i, img := range images {
			resp.Images[i] = ImageToResponse(img)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadImageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid multipart form", "BAD_REQUEST")
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "no image provided", "BAD_REQUEST")
			return
		}
		defer file.Close()

		img, err := cfg.Images.Upload(r.Context(), header.Filename, file)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, UploadResponse{ID: img.ID, URL: mediaURL(img.Path)})
	}
}

func getImageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		img, err := cfg.Images.GetImage(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if img == nil {
			WriteError(w, http.StatusNotFound, "image not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, ImageToResponse(img))
	}
}

func saveAnnotationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		body, err := io.ReadAll(io.LimitReader(r.Body, maxAnnotationBody))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Images.SaveAnnotations(r.Context(), id, body); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		img, err := cfg.Images.GetImage(r.Context(), id)
		if err != nil || img == nil {
			WriteJSON(w, http.StatusOK, SaveAnnotationsResponse{Status: "ok"})
			return
		}
		doc, err := cfg.Images.Document(img)
		if err != nil {
			WriteJSON(w, http.StatusOK, SaveAnnotationsResponse{Status: "ok"})
			return
		}

		WriteJSON(w, http.StatusOK, SaveAnnotationsResponse{Status: "ok", Shapes: len(doc.Annotations)})
	}
}

func detectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req DetectRequest
		if err := decodeJSONBodyAllowEmpty(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		img, err := cfg.Images.GetImage(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if img == nil {
			WriteError(w, http.StatusNotFound, "image not found", "NOT_FOUND")
			return
		}

		if cfg.Detector == nil || !cfg.Detector.Available() {
			WriteError(w, http.StatusServiceUnavailable, "no detector configured", "DETECTOR_UNAVAILABLE")
			return
		}

		preds, err := cfg.Detector.Detect(r.Context(), cfg.Images.MediaPath(img), detect.Options{
			Classes:             req.Classes,
			ConfidenceThreshold: req.ConfidenceThreshold,
		})
		if err != nil {
			if errors.Is(err, detect.ErrUnavailable) {
				WriteError(w, http.StatusServiceUnavailable, "no detector configured", "DETECTOR_UNAVAILABLE")
				return
			}
			WriteError(w, http.StatusBadGateway, err.Error(), "DETECTOR_ERROR")
			return
		}

		resp := DetectResponse{
			Predictions: make([]PredictionResponse, len(preds)),
			Colors:      detect.AssignColors(preds),
		}
		for i, p := range preds {
			resp.Predictions[i] = PredictionToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// decodeJSONBodyAllowEmpty decodes a JSON request body, treating an
// empty body as the zero value.
func decodeJSONBodyAllowEmpty(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := chi.URLParam(r, "*")

		path := cfg.Images.ResolveMediaURL(rel)
		if path == "" {
			WriteError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
			return
		}
		if _, err := os.Stat(path); err != nil {
			WriteError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
			return
		}

		http.ServeFile(w, r, path)
	}
}
