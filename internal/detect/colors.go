package detect

import "github.com/lucasb-eyer/go-colorful"

// AssignColors picks one display color per distinct prediction label so
// the drawing canvas can render detector output consistently. Returned
// values are hex strings keyed by label.
func AssignColors(preds []Prediction) map[string]string {
	var labels []string
	seen := map[string]bool{}
	for _, p := range preds {
		if !seen[p.Label] {
			seen[p.Label] = true
			labels = append(labels, p.Label)
		}
	}
	if len(labels) == 0 {
		return map[string]string{}
	}

	palette := colorful.FastHappyPalette(len(labels))
	colors := make(map[string]string, len(labels))
	for i, label := range labels {
		colors[label] = palette[i].Hex()
	}
	return colors
}
