package orchestrator

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/example/bug-intake/internal/blobstore"
	"github.com/example/bug-intake/internal/classifier"
	"github.com/example/bug-intake/internal/findings"
	"github.com/example/bug-intake/internal/linter"
	"github.com/example/bug-intake/internal/storage"
)

const uploadPrefix = "uploads"

type state string

const (
	stateUploading   state = "uploading"
	stateUploaded    state = "uploaded"
	stateScanning    state = "scanning"
	stateScanned     state = "scanned"
	stateAggregating state = "aggregating"
	statePersisting  state = "persisting"
)

type Scanner interface {
	Scan(text string, file findings.FileRef) findings.ScanResult
}

type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

type Dependencies struct {
	Blobs      blobstore.Store
	Findings   storage.Store
	Scanner    Scanner
	Classifier Classifier
	Linter     linter.Linter
	Logger     hclog.Logger
	Clock      func() time.Time
}

// Service runs the intake pipeline. Every request is processed
// sequentially: files in submission order, at most one bulk insert.
type Service struct {
	blobs      blobstore.Store
	findings   storage.Store
	scanner    Scanner
	classifier Classifier
	linter     linter.Linter
	logger     hclog.Logger
	now        func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		blobs:      deps.Blobs,
		findings:   deps.Findings,
		scanner:    deps.Scanner,
		classifier: deps.Classifier,
		linter:     deps.Linter,
		logger:     logger.Named("orchestrator"),
		now:        now,
	}
}

type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type StoredFile struct {
	FileName string  `json:"fileName"`
	FilePath string  `json:"filePath"`
	FileURL  *string `json:"fileUrl"`
}

func (f StoredFile) ref() findings.FileRef {
	return findings.FileRef{Name: f.FileName, Path: f.FilePath, URL: findings.Deref(f.FileURL)}
}

type FileResult struct {
	File     StoredFile
	Findings []findings.Finding
}

type FolderResult struct {
	Files    []StoredFile
	Findings []findings.Finding
}

type AnalysisResult struct {
	File     StoredFile
	Analysis classifier.Result
	Recorded bool
}

type LintResult struct {
	Path     string
	Findings []findings.Finding
}

// UploadFile stores one file, scans it and records its findings.
func (s *Service) UploadFile(ctx context.Context, file UploadedFile) (FileResult, error) {
	result, err := s.UploadFolder(ctx, []UploadedFile{file})
	if err != nil {
		return FileResult{}, err
	}
	return FileResult{File: result.Files[0], Findings: result.Findings}, nil
}

// UploadFolder stores and scans files one at a time in input order and
// records all findings with a single insert.
func (s *Service) UploadFolder(ctx context.Context, files []UploadedFile) (FolderResult, error) {
	if len(files) == 0 {
		return FolderResult{}, &InputError{Message: "No files uploaded"}
	}

	var result FolderResult
	for i, file := range files {
		stored, err := s.store(ctx, file, i)
		if err != nil {
			return FolderResult{}, err
		}

		s.trace(stateScanning, stored.FilePath)
		found := s.scanner.Scan(string(file.Data), stored.ref())
		s.trace(stateScanned, stored.FilePath, "findings", len(found))

		result.Files = append(result.Files, stored)
		result.Findings = append(result.Findings, found...)
	}

	s.trace(stateAggregating, "", "files", len(result.Files), "findings", len(result.Findings))
	if err := s.persist(ctx, result.Findings); err != nil {
		return FolderResult{}, err
	}

	s.logger.Info("files scanned", "files", len(result.Files), "findings", len(result.Findings))
	return result, nil
}

// AnalyzeFile stores one file and asks the classifier about its content. A
// successful classification with a non-default label is recorded as a
// finding without a line number. Classifier failures do not fail the call.
func (s *Service) AnalyzeFile(ctx context.Context, file UploadedFile) (AnalysisResult, error) {
	stored, err := s.store(ctx, file, 0)
	if err != nil {
		return AnalysisResult{}, err
	}

	s.trace(stateScanning, stored.FilePath, "classifier", true)
	analysis := s.classify(ctx, string(file.Data))
	s.trace(stateScanned, stored.FilePath, "label", analysis.Label, "failed", analysis.Failed())

	result := AnalysisResult{File: stored, Analysis: analysis}
	if analysis.Failed() || analysis.Label == classifier.DefaultLabel {
		return result, nil
	}

	finding := findings.New(stored.ref(), 0, analysis.Label, s.now()).WithConfidence(analysis.Confidence)
	if err := s.persist(ctx, []findings.Finding{finding}); err != nil {
		return AnalysisResult{}, err
	}
	result.Recorded = true
	return result, nil
}

// LintStoredFile reads a file that is already in the blob store, lints it
// and records the messages as findings.
func (s *Service) LintStoredFile(ctx context.Context, filePath string) (LintResult, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return LintResult{}, &InputError{Message: "No file path provided"}
	}
	if s.linter == nil {
		return LintResult{}, fmt.Errorf("linter is not configured")
	}

	data, err := s.blobs.Download(ctx, filePath)
	if err != nil {
		return LintResult{}, upstream("download", err)
	}

	url, _ := s.blobs.PublicURL(filePath)
	ref := findings.FileRef{Name: path.Base(filePath), Path: filePath, URL: url}

	s.trace(stateScanning, filePath, "linter", true)
	var found []findings.Finding
	for _, msg := range s.linter.Lint(filePath, string(data)) {
		found = append(found, findings.New(ref, msg.Line, msg.Text, s.now()).WithSuggestion(msg.Hint))
	}
	s.trace(stateScanned, filePath, "findings", len(found))

	if err := s.persist(ctx, found); err != nil {
		return LintResult{}, err
	}
	return LintResult{Path: filePath, Findings: found}, nil
}

func (s *Service) ListFindings(ctx context.Context, fileName string) ([]findings.Finding, error) {
	items, err := s.findings.ListFindings(ctx, strings.TrimSpace(fileName))
	if err != nil {
		return nil, upstream("list findings", err)
	}
	return items, nil
}

func (s *Service) store(ctx context.Context, file UploadedFile, index int) (StoredFile, error) {
	name := file.Name
	if name == "" {
		name = "upload"
	}
	objectPath := s.objectPath(name, index)

	s.trace(stateUploading, objectPath, "bytes", len(file.Data))
	obj, err := s.blobs.Upload(ctx, objectPath, file.Data, file.ContentType)
	if err != nil {
		return StoredFile{}, upstream("upload", err)
	}
	s.trace(stateUploaded, obj.Path)

	url := obj.URL
	if url == "" {
		url, _ = s.blobs.PublicURL(obj.Path)
	}
	return StoredFile{FileName: name, FilePath: obj.Path, FileURL: findings.Optional(url)}, nil
}

// objectPath prefixes the cleaned file name with the current time in
// milliseconds. Files after the first in a request also carry their index,
// so same-named files in one folder upload get distinct keys. Separate
// requests for the same name within one millisecond still collide.
func (s *Service) objectPath(name string, index int) string {
	clean := strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	if index == 0 {
		return fmt.Sprintf("%s/%d_%s", uploadPrefix, s.now().UnixMilli(), clean)
	}
	return fmt.Sprintf("%s/%d-%d_%s", uploadPrefix, s.now().UnixMilli(), index, clean)
}

func (s *Service) classify(ctx context.Context, text string) classifier.Result {
	if s.classifier == nil {
		return classifier.Result{Error: classifier.FailedMessage}
	}
	return s.classifier.Classify(ctx, text)
}

func (s *Service) persist(ctx context.Context, items []findings.Finding) error {
	if len(items) == 0 {
		return nil
	}
	s.trace(statePersisting, "", "findings", len(items))
	if err := s.findings.InsertFindings(ctx, items); err != nil {
		return upstream("insert findings", err)
	}
	return nil
}

func (s *Service) trace(st state, filePath string, args ...interface{}) {
	fields := append([]interface{}{"state", string(st)}, args...)
	if filePath != "" {
		fields = append(fields, "path", filePath)
	}
	s.logger.Debug("pipeline", fields...)
}
