package reconcile

import (
	"strings"

	"github.com/starford/readwise2anki/internal/models"
)

// DiffFields returns the fields of want that differ from note. Fields the
// note's type does not have are ignored, so older note types keep working.
func DiffFields(note *models.ExistingNote, want models.NoteFields) map[string]string {
	values := want.Map()
	changed := make(map[string]string)
	for _, name := range models.NoteFieldNames {
		cur, ok := note.Field(name)
		if !ok {
			continue
		}
		if cur != values[name] {
			changed[name] = values[name]
		}
	}
	return changed
}

// SameTags reports whether a and b hold the same tags, ignoring order and
// case. Anki treats tags case-insensitively.
func SameTags(a, b []string) bool {
	return tagSet(a).equal(tagSet(b))
}

type set map[string]struct{}

func tagSet(tags []string) set {
	s := make(set, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			s[strings.ToLower(t)] = struct{}{}
		}
	}
	return s
}

func (s set) equal(o set) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// fieldNames lists the keys of changed in schema order.
func fieldNames(changed map[string]string) []string {
	names := make([]string, 0, len(changed))
	for _, name := range models.NoteFieldNames {
		if _, ok := changed[name]; ok {
			names = append(names, name)
		}
	}
	return names
}
