// Package vocab assigns insertion-ordered integer category ids to label
// strings for the duration of one export run.
package vocab

import "strings"

// DefaultLabel substitutes for empty or missing labels.
const DefaultLabel = "unknown"

// Class is one (id, label) pair in first-seen order.
type Class struct {
	ID    int
	Label string
}

// Vocabulary maps normalized labels to sequential ids. It is scoped to
// a single export call and is not safe for concurrent use; each export
// builds its own.
type Vocabulary struct {
	base    int
	ids     map[string]int
	classes []Class
}

// New returns an empty vocabulary whose first id is base (0 for the
// per-image label format, 1 for the unified document format).
func New(base int) *Vocabulary {
	return &Vocabulary{base: base, ids: make(map[string]int)}
}

// Normalize is the label canonicalization applied before lookup.
func Normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return DefaultLabel
	}
	return label
}

// IDFor returns the id for label, allocating the next sequential id on
// first sight. Ids are never reused or reordered within a run.
func (v *Vocabulary) IDFor(label string) int {
	key := Normalize(label)
	if id, ok := v.ids[key]; ok {
		return id
	}
	id := v.base + len(v.classes)
	v.ids[key] = id
	v.classes = append(v.classes, Class{ID: id, Label: key})
	return id
}

// Classes lists all seen classes ordered by id.
func (v *Vocabulary) Classes() []Class {
	out := make([]Class, len(v.classes))
	copy(out, v.classes)
	return out
}

// Len reports how many distinct labels have been seen.
func (v *Vocabulary) Len() int {
	return len(v.classes)
}
