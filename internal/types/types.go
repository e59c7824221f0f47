package types

import (
	"github.com/example/bug-intake/internal/classifier"
	"github.com/example/bug-intake/internal/findings"
)

type UploadedFile struct {
	FileName string  `json:"fileName"`
	FilePath string  `json:"filePath"`
	FileURL  *string `json:"fileUrl"`
}

type AnalyzeResponse struct {
	Message    string            `json:"message"`
	AIAnalysis classifier.Result `json:"aiAnalysis"`
	FileURL    *string           `json:"fileUrl"`
}

type UploadFileResponse struct {
	Message      string             `json:"message"`
	BugFound     bool               `json:"bugFound"`
	FileURL      *string            `json:"fileUrl"`
	DetectedBugs []findings.Finding `json:"detectedBugs"`
}

type UploadFolderResponse struct {
	Message       string             `json:"message"`
	FilesUploaded int                `json:"filesUploaded"`
	BugsDetected  int                `json:"bugsDetected"`
	UploadedFiles []UploadedFile     `json:"uploadedFiles"`
	DetectedBugs  []findings.Finding `json:"detectedBugs"`
}

type FindingsResponse struct {
	Findings []findings.Finding `json:"findings"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// LintRequest is the body of the lint webhook.
type LintRequest struct {
	Path string `json:"path"`
}
