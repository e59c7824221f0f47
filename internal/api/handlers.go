package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"github.com/example/bug-intake/internal/findings"
	"github.com/example/bug-intake/internal/orchestrator"
	"github.com/example/bug-intake/internal/types"
)

const (
	fieldFile  = "file"
	fieldFiles = "files"
)

type Intake interface {
	UploadFile(ctx context.Context, file orchestrator.UploadedFile) (orchestrator.FileResult, error)
	UploadFolder(ctx context.Context, files []orchestrator.UploadedFile) (orchestrator.FolderResult, error)
	AnalyzeFile(ctx context.Context, file orchestrator.UploadedFile) (orchestrator.AnalysisResult, error)
	LintStoredFile(ctx context.Context, path string) (orchestrator.LintResult, error)
	ListFindings(ctx context.Context, fileName string) ([]findings.Finding, error)
}

type Handlers struct {
	intake         Intake
	logger         hclog.Logger
	maxUploadBytes int64
}

func NewHandlers(intake Intake, logger hclog.Logger, maxUploadBytes int64) *Handlers {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &Handlers{intake: intake, logger: logger.Named("api"), maxUploadBytes: maxUploadBytes}
}

// Routes registers every endpoint on mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /findings", h.ListFindings)
	mux.HandleFunc("POST /bug", h.AnalyzeBug)
	mux.HandleFunc("POST /upload-file", h.UploadFile)
	mux.HandleFunc("POST /upload-folder", h.UploadFolder)
	mux.HandleFunc("/webhook/lint", h.LintWebhook)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, types.HealthResponse{Status: "ok"})
}

func (h *Handlers) AnalyzeBug(w http.ResponseWriter, r *http.Request) {
	files, err := h.readFiles(r, fieldFile)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(files) == 0 {
		respondJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "No file uploaded"})
		return
	}

	result, err := h.intake.AnalyzeFile(r.Context(), files[0])
	if err != nil {
		h.respondError(w, r, statusFor(err), err)
		return
	}

	respondJSON(w, http.StatusOK, types.AnalyzeResponse{
		Message:    "File uploaded and analyzed successfully",
		AIAnalysis: result.Analysis,
		FileURL:    result.File.FileURL,
	})
}

func (h *Handlers) UploadFile(w http.ResponseWriter, r *http.Request) {
	files, err := h.readFiles(r, fieldFile)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(files) == 0 {
		respondJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "No file uploaded"})
		return
	}

	result, err := h.intake.UploadFile(r.Context(), files[0])
	if err != nil {
		h.respondError(w, r, statusFor(err), err)
		return
	}

	respondJSON(w, http.StatusOK, types.UploadFileResponse{
		Message:      "File uploaded and scanned successfully",
		BugFound:     len(result.Findings) > 0,
		FileURL:      result.File.FileURL,
		DetectedBugs: nonNil(result.Findings),
	})
}

func (h *Handlers) UploadFolder(w http.ResponseWriter, r *http.Request) {
	files, err := h.readFiles(r, fieldFiles)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(files) == 0 {
		respondJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "No files uploaded"})
		return
	}

	result, err := h.intake.UploadFolder(r.Context(), files)
	if err != nil {
		h.respondError(w, r, statusFor(err), err)
		return
	}

	uploaded := make([]types.UploadedFile, 0, len(result.Files))
	for _, f := range result.Files {
		uploaded = append(uploaded, types.UploadedFile{FileName: f.FileName, FilePath: f.FilePath, FileURL: f.FileURL})
	}
	respondJSON(w, http.StatusOK, types.UploadFolderResponse{
		Message:       "Folder uploaded and scanned successfully",
		FilesUploaded: len(result.Files),
		BugsDetected:  len(result.Findings),
		UploadedFiles: uploaded,
		DetectedBugs:  nonNil(result.Findings),
	})
}

func (h *Handlers) ListFindings(w http.ResponseWriter, r *http.Request) {
	items, err := h.intake.ListFindings(r.Context(), r.URL.Query().Get("file"))
	if err != nil {
		h.respondError(w, r, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, types.FindingsResponse{Findings: nonNil(items)})
}

// LintWebhook lints a file that is already in the blob store. It answers
// with plain text bodies.
func (h *Handlers) LintWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	var req types.LintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondText(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := h.intake.LintStoredFile(r.Context(), req.Path)
	if err != nil {
		status := statusFor(err)
		h.logError(r, status, err)
		respondText(w, status, err.Error())
		return
	}

	h.logger.Info("lint results saved", "path", result.Path, "findings", len(result.Findings))
	respondText(w, http.StatusOK, fmt.Sprintf("Lint complete for %s: %d issues recorded", result.Path, len(result.Findings)))
}

// readFiles returns the files sent under field. A request that is not
// multipart carries no files.
func (h *Handlers) readFiles(r *http.Request, field string) ([]orchestrator.UploadedFile, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	if r.MultipartForm == nil {
		return nil, nil
	}

	headers := r.MultipartForm.File[field]
	files := make([]orchestrator.UploadedFile, 0, len(headers))
	for _, header := range headers {
		data, err := readPart(header)
		if err != nil {
			return nil, err
		}
		files = append(files, orchestrator.UploadedFile{
			Name:        partFilename(header),
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// partFilename returns the filename as the client sent it. FileHeader.Filename
// is reduced to its base name, which would merge files from different
// directories of a folder upload.
func partFilename(header *multipart.FileHeader) string {
	_, params, err := mime.ParseMediaType(header.Header.Get("Content-Disposition"))
	if err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return header.Filename
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	part, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", header.Filename, err)
	}
	defer part.Close()
	return io.ReadAll(part)
}

func statusFor(err error) int {
	var inputErr *orchestrator.InputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func nonNil(items []findings.Finding) []findings.Finding {
	if items == nil {
		return []findings.Finding{}
	}
	return items
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	h.logError(r, status, err)
	respondJSON(w, status, types.ErrorResponse{Error: err.Error()})
}

func (h *Handlers) logError(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		return
	}
	h.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
