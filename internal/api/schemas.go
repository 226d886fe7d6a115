package api

import (
	"path/filepath"
	"time"

	"github.com/labelkit/labelkit-server/internal/detect"
	"github.com/labelkit/labelkit-server/internal/store"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	UptimeS     int64  `json:"uptime_s"`
	ImagesCount int    `json:"images_count"`
	Detector    bool   `json:"detector_available"`
}

type UploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ImageResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	ThumbURL   string `json:"thumb_url,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	UploadedAt string `json:"uploaded_at"`
}

type ImagesResponse struct {
	Images []ImageResponse `json:"images"`
}

type SaveAnnotationsResponse struct {
	Status string `json:"status"`
	Shapes int    `json:"shapes"`
}

type DetectRequest struct {
	Classes             []string `json:"classes,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
}

type DetectResponse struct {
	Predictions []PredictionResponse `json:"predictions"`
	Colors      map[string]string    `json:"colors"`
}

type PredictionResponse struct {
	Type       string          `json:"type"`
	Label      string          `json:"label"`
	Points     []PointResponse `json:"points"`
	Confidence float64         `json:"confidence"`
}

type PointResponse struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ImageToResponse(img *store.Image) ImageResponse {
	resp := ImageResponse{
		ID:         img.ID,
		Filename:   img.Filename,
		URL:        mediaURL(img.Path),
		Width:      img.Width,
		Height:     img.Height,
		UploadedAt: img.UploadedAt.Format(time.RFC3339),
	}
	if img.ThumbPath != "" {
		resp.ThumbURL = mediaURL(img.ThumbPath)
	}
	return resp
}

func PredictionToResponse(p detect.Prediction) PredictionResponse {
	pts := make([]PointResponse, len(p.Points))
	for i, pt := range p.Points {
		pts[i] = PointResponse{X: pt.X, Y: pt.Y}
	}
	return PredictionResponse{
		Type:       "polygon",
		Label:      p.Label,
		Points:     pts,
		Confidence: p.Confidence,
	}
}

func mediaURL(rel string) string {
	return "/media/" + filepath.ToSlash(rel)
}
