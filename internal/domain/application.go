package domain

import (
	"time"

	"github.com/tidwall/gjson"
)

// FormData is the submitted form document kept as raw JSON so that key
// order and value types survive storage untouched. It is never validated
// against a schema.
type FormData []byte

// MarshalJSON emits the stored document verbatim.
func (f FormData) MarshalJSON() ([]byte, error) {
	if len(f) == 0 {
		return []byte("null"), nil
	}
	return f, nil
}

// UnmarshalJSON keeps a copy of the raw document.
func (f *FormData) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}
	*f = append((*f)[:0], data...)
	return nil
}

// IsEmpty reports whether the document is absent, not an object, or an
// object without keys.
func (f FormData) IsEmpty() bool {
	if len(f) == 0 || !gjson.ValidBytes(f) {
		return true
	}
	root := gjson.ParseBytes(f)
	if !root.IsObject() {
		return true
	}
	empty := true
	root.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return empty
}

// FileRef describes one uploaded file stored under a logical upload slot.
type FileRef struct {
	Field        string `json:"field" bson:"field"`
	OriginalName string `json:"originalName" bson:"originalName"`
	MimeType     string `json:"mimeType" bson:"mimeType"`
	Size         int64  `json:"size" bson:"size"`
	Path         string `json:"path" bson:"path"`
}

// Application is one submission stored in its category's collection.
type Application struct {
	ID            string
	Region        Region
	ApplicantType ApplicantType
	FormKey       string
	FormData      FormData
	Files         []FileRef
	EditToken     string
	EditUntil     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Category returns the category derived from the stored classification.
func (a *Application) Category() (Category, error) {
	return ResolveCategory(a.Region, a.ApplicantType)
}

// Editable reports whether the edit window is still open at now.
func (a *Application) Editable(now time.Time) bool {
	return !now.After(a.EditUntil)
}

// MergeFiles merges incoming file refs into existing by field name. An
// incoming field already present replaces that entry in place, new fields
// are appended, and untouched fields are kept as they were.
func MergeFiles(existing, incoming []FileRef) []FileRef {
	merged := make([]FileRef, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, f := range merged {
		index[f.Field] = i
	}
	for _, f := range incoming {
		if i, ok := index[f.Field]; ok {
			merged[i] = f
			continue
		}
		index[f.Field] = len(merged)
		merged = append(merged, f)
	}
	return merged
}
