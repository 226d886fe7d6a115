package dataset

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labelkit/labelkit-server/internal/geometry"
	"github.com/labelkit/labelkit-server/internal/vocab"
)

// YOLOEncoder produces a zip archive with normalized-polygon label
// files (one per image), image copies, an ordered classes.txt and a
// data.yaml id-to-name manifest.
type YOLOEncoder struct {
	logger *slog.Logger
}

func NewYOLOEncoder(logger *slog.Logger) *YOLOEncoder {
	return &YOLOEncoder{logger: logger}
}

// Encode builds the archive. Per-image failures are logged and skipped;
// a partial dataset is valid output.
func (e *YOLOEncoder) Encode(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	voc := vocab.New(0)
	stems := map[string]int{}

	for _, item := range items {
		if len(item.Shapes) == 0 {
			continue
		}
		if item.Width <= 0 || item.Height <= 0 {
			e.warn("skipping image without dimensions", "image_id", item.ImageID)
			continue
		}

		lines := make([]string, 0, len(item.Shapes))
		for _, shape := range item.Shapes {
			line, ok := labelLine(voc, shape, item.Width, item.Height)
			if !ok {
				e.warn("skipping shape without polygon geometry",
					"image_id", item.ImageID, "type", shape.Type)
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		stem := uniqueStem(stems, item.FileName)

		if err := writeEntry(zw, "labels/"+stem+".txt", []byte(strings.Join(lines, "\n")+"\n")); err != nil {
			return nil, fmt.Errorf("write label file: %w", err)
		}

		if item.ImagePath != "" {
			data, err := os.ReadFile(item.ImagePath)
			if err != nil {
				e.warn("image file unreadable, label emitted without image",
					"image_id", item.ImageID, "error", err)
			} else {
				ext := strings.ToLower(filepath.Ext(item.FileName))
				if err := writeEntry(zw, "images/"+stem+ext, data); err != nil {
					return nil, fmt.Errorf("write image entry: %w", err)
				}
			}
		}
	}

	classes := voc.Classes()

	var classList strings.Builder
	for _, c := range classes {
		classList.WriteString(c.Label)
		classList.WriteByte('\n')
	}
	if err := writeEntry(zw, "classes.txt", []byte(classList.String())); err != nil {
		return nil, fmt.Errorf("write classes.txt: %w", err)
	}

	if err := writeEntry(zw, "data.yaml", manifestYAML(classes)); err != nil {
		return nil, fmt.Errorf("write data.yaml: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// labelLine renders one "<class_id> x1 y1 ... xn yn" line with
// coordinates normalized to [0, 1] at six decimals. Shapes that do not
// resolve to at least 3 points carry no polygon and are excluded.
func labelLine(voc *vocab.Vocabulary, shape geometry.Shape, width, height int) (string, bool) {
	pts := geometry.Normalize(shape)
	if len(pts) < 3 {
		return "", false
	}

	id := voc.IDFor(shape.Label)

	var b strings.Builder
	b.WriteString(strconv.Itoa(id))
	for _, p := range pts {
		b.WriteByte(' ')
		b.WriteString(formatCoord(p.X / float64(width)))
		b.WriteByte(' ')
		b.WriteString(formatCoord(p.Y / float64(height)))
	}
	return b.String(), true
}

func formatCoord(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// manifestYAML renders the id-to-name manifest consumed by common
// training frameworks.
func manifestYAML(classes []vocab.Class) []byte {
	var b strings.Builder
	b.WriteString("train: images\n")
	b.WriteString("val: images\n")
	fmt.Fprintf(&b, "nc: %d\n", len(classes))
	b.WriteString("names:\n")
	for _, c := range classes {
		fmt.Fprintf(&b, "  %d: %s\n", c.ID, c.Label)
	}
	return []byte(b.String())
}

// uniqueStem derives a label-file stem from the image file name,
// de-duplicating repeats with a numeric suffix.
func uniqueStem(seen map[string]int, fileName string) string {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if stem == "" {
		stem = "image"
	}
	n := seen[stem]
	seen[stem] = n + 1
	if n == 0 {
		return stem
	}
	return fmt.Sprintf("%s_%d", stem, n)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (e *YOLOEncoder) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
