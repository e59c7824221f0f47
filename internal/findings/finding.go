package findings

import (
	"time"

	"github.com/google/uuid"
)

// FileRef identifies the stored file a finding belongs to.
type FileRef struct {
	Name string
	Path string
	URL  string
}

// Finding is one detected issue in an uploaded file. LineNumber is 0 when
// the finding is not tied to a line, e.g. a whole-file classification.
type Finding struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	FileURL      *string   `json:"file_url"`
	LineNumber   int       `json:"line_number"`
	ErrorMessage string    `json:"error_message"`
	Confidence   *float64  `json:"confidence,omitempty"`
	Suggestion   *string   `json:"suggestion,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScanResult holds the findings of one scan in line order, then pattern
// order for findings on the same line.
type ScanResult []Finding

func New(file FileRef, line int, message string, createdAt time.Time) Finding {
	return Finding{
		ID:           uuid.NewString(),
		FileName:     file.Name,
		FilePath:     file.Path,
		FileURL:      Optional(file.URL),
		LineNumber:   line,
		ErrorMessage: message,
		CreatedAt:    createdAt.UTC(),
	}
}

func (f Finding) WithSuggestion(hint string) Finding {
	f.Suggestion = Optional(hint)
	return f
}

func (f Finding) WithConfidence(score float64) Finding {
	f.Confidence = &score
	return f
}

// Optional returns nil for an empty string.
func Optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
