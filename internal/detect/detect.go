// Package detect defines the object-detection capability used to
// auto-generate annotations, as a stateless collaborator: every call
// carries its own class prompt and confidence threshold, nothing is
// mutated on a shared handle.
package detect

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labelkit/labelkit-server/internal/geometry"
)

// ErrUnavailable is returned when no detector backend is configured.
var ErrUnavailable = errors.New("detector unavailable")

// Options are the per-call detection parameters.
type Options struct {
	// Classes restricts detection to these labels. Empty means the
	// model's full vocabulary.
	Classes []string

	// ConfidenceThreshold drops predictions below it. Zero keeps all.
	ConfidenceThreshold float64
}

// Prediction is one detected region.
type Prediction struct {
	Label      string           `json:"label"`
	Points     []geometry.Point `json:"points"`
	Confidence float64          `json:"confidence"`
}

// Detector produces predictions for one stored image.
type Detector interface {
	Detect(ctx context.Context, imagePath string, opts Options) ([]Prediction, error)

	// Available reports whether the backend can serve detect calls.
	Available() bool
}

// StubDetector serves deployments without a configured model backend.
type StubDetector struct {
	logger *slog.Logger
}

func NewStubDetector(logger *slog.Logger) *StubDetector {
	return &StubDetector{logger: logger}
}

func (s *StubDetector) Detect(ctx context.Context, imagePath string, opts Options) ([]Prediction, error) {
	if s.logger != nil {
		s.logger.Debug("stub detector invoked", "classes", opts.Classes)
	}
	return nil, ErrUnavailable
}

func (s *StubDetector) Available() bool {
	return false
}

// Filter drops predictions below the confidence threshold, in place
// order-preserving.
func Filter(preds []Prediction, threshold float64) []Prediction {
	if threshold <= 0 {
		return preds
	}
	out := preds[:0]
	for _, p := range preds {
		if p.Confidence >= threshold {
			out = append(out, p)
		}
	}
	return out
}
