package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bug-intake/internal/blobstore"
	"github.com/example/bug-intake/internal/classifier"
	"github.com/example/bug-intake/internal/findings"
	"github.com/example/bug-intake/internal/linter"
	"github.com/example/bug-intake/internal/patterns"
	"github.com/example/bug-intake/internal/scanner"
	"github.com/example/bug-intake/internal/storage"
)

var fixedTime = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type stubClassifier struct {
	result classifier.Result
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, text string) classifier.Result {
	s.calls++
	return s.result
}

type failingBlobs struct {
	*blobstore.MemoryStore
}

func (failingBlobs) Upload(ctx context.Context, path string, data []byte, contentType string) (blobstore.Object, error) {
	return blobstore.Object{}, errors.New("bucket not found")
}

type failingFindings struct {
	*storage.MemoryStore
}

func (failingFindings) InsertFindings(ctx context.Context, items []findings.Finding) error {
	return errors.New("relation \"bug_reports\" does not exist")
}

type fixture struct {
	service    *Service
	blobs      *blobstore.MemoryStore
	store      *storage.MemoryStore
	classifier *stubClassifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		blobs:      blobstore.NewMemoryStore("https://cdn.example.com"),
		store:      storage.NewMemoryStore(),
		classifier: &stubClassifier{result: classifier.Result{Label: "LABEL_1", Confidence: 0.8}},
	}
	lines := scanner.New(patterns.Default()).WithClock(func() time.Time { return fixedTime })
	f.service = NewService(Dependencies{
		Blobs:      f.blobs,
		Findings:   f.store,
		Scanner:    lines,
		Classifier: f.classifier,
		Linter:     linter.New(lines),
		Clock:      func() time.Time { return fixedTime },
	})
	return f
}

func TestUploadFileScansAndPersists(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.UploadFile(context.Background(), UploadedFile{
		Name:        "app.js",
		ContentType: "text/javascript",
		Data:        []byte("let x = undefined variable;\nfoo();\nwhile(true){}"),
	})
	require.NoError(t, err)

	wantPath := "uploads/1717236000000_app.js"
	assert.Equal(t, wantPath, result.File.FilePath)
	require.NotNil(t, result.File.FileURL)
	assert.Equal(t, "https://cdn.example.com/"+wantPath, *result.File.FileURL)

	require.Len(t, result.Findings, 2)
	assert.Equal(t, 1, result.Findings[0].LineNumber)
	assert.Equal(t, 3, result.Findings[1].LineNumber)
	assert.Equal(t, wantPath, result.Findings[0].FilePath)

	stored, err := f.store.ListFindings(context.Background(), "app.js")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Equal(t, 1, f.store.Inserts())
	assert.Equal(t, 1, f.blobs.Uploads())
}

func TestUploadFileWithoutFindingsSkipsInsert(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.UploadFile(context.Background(), UploadedFile{Name: "ok.js", Data: []byte("const a = 1;\n")})
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
	assert.Zero(t, f.store.Inserts())
	assert.Equal(t, 1, f.blobs.Uploads())
}

func TestUploadFolderAggregates(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.UploadFolder(context.Background(), []UploadedFile{
		{Name: "src/a.js", Data: []byte("x is not defined\nwhile (true) {}")},
		{Name: "src/b.js", Data: []byte("deprecated()\nfor (;;) {}\ny = 1 / 0")},
	})
	require.NoError(t, err)

	require.Len(t, result.Files, 2)
	require.Len(t, result.Findings, 5)
	assert.Equal(t, 1, f.store.Inserts())

	for _, finding := range result.Findings[:2] {
		assert.Equal(t, "src/a.js", finding.FileName)
		assert.Equal(t, result.Files[0].FilePath, finding.FilePath)
	}
	for _, finding := range result.Findings[2:] {
		assert.Equal(t, "src/b.js", finding.FileName)
		assert.Equal(t, result.Files[1].FilePath, finding.FilePath)
	}
}

func TestUploadFolderRequiresFiles(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.UploadFolder(context.Background(), nil)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Zero(t, f.blobs.Uploads())
	assert.Zero(t, f.store.Inserts())
}

func TestUploadFailureIsUpstreamError(t *testing.T) {
	f := newFixture(t)
	f.service.blobs = failingBlobs{f.blobs}

	_, err := f.service.UploadFile(context.Background(), UploadedFile{Name: "a.js", Data: []byte("undefined")})

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "upload", upErr.Op)
	assert.Equal(t, "bucket not found", err.Error())
	assert.Zero(t, f.store.Inserts())
}

func TestInsertFailureKeepsBlob(t *testing.T) {
	f := newFixture(t)
	f.service.findings = failingFindings{f.store}

	_, err := f.service.UploadFile(context.Background(), UploadedFile{Name: "a.js", Data: []byte("undefined")})

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "insert findings", upErr.Op)
	assert.Equal(t, 1, f.blobs.Uploads())
}

func TestAnalyzeFileRecordsClassification(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.AnalyzeFile(context.Background(), UploadedFile{Name: "main.py", Data: []byte("print(x)")})
	require.NoError(t, err)

	assert.True(t, result.Recorded)
	assert.Equal(t, "LABEL_1", result.Analysis.Label)

	stored, err := f.store.ListFindings(context.Background(), "main.py")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 0, stored[0].LineNumber)
	require.NotNil(t, stored[0].Confidence)
	assert.InDelta(t, 0.8, *stored[0].Confidence, 1e-9)
}

func TestAnalyzeFileClassifierFailure(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = classifier.Result{Error: classifier.FailedMessage}

	result, err := f.service.AnalyzeFile(context.Background(), UploadedFile{Name: "main.py", Data: []byte("x")})
	require.NoError(t, err)

	assert.True(t, result.Analysis.Failed())
	assert.False(t, result.Recorded)
	assert.Zero(t, f.store.Inserts())
	assert.Equal(t, 1, f.blobs.Uploads())
}

func TestAnalyzeFileDefaultLabelNotRecorded(t *testing.T) {
	f := newFixture(t)
	f.classifier.result = classifier.Result{Label: classifier.DefaultLabel}

	result, err := f.service.AnalyzeFile(context.Background(), UploadedFile{Name: "main.py", Data: []byte("x")})
	require.NoError(t, err)

	assert.False(t, result.Recorded)
	assert.Zero(t, f.store.Inserts())
}

func TestLintStoredFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.blobs.Upload(ctx, "uploads/5_main.go", []byte("package main\n\nfunc main() {\n\tpanic(1)\n}\n"), "text/x-go")
	require.NoError(t, err)

	result, err := f.service.LintStoredFile(ctx, "uploads/5_main.go")
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	assert.Equal(t, 4, result.Findings[0].LineNumber)
	assert.Equal(t, "5_main.go", result.Findings[0].FileName)
	assert.True(t, strings.HasPrefix(result.Findings[0].ErrorMessage, "panic call"))
	assert.NotNil(t, result.Findings[0].Suggestion)
	assert.Equal(t, 1, f.store.Inserts())
}

func TestLintStoredFileErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.LintStoredFile(context.Background(), " ")
	var inputErr *InputError
	assert.ErrorAs(t, err, &inputErr)

	_, err = f.service.LintStoredFile(context.Background(), "uploads/missing.go")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestObjectPathIsCleaned(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "uploads/1717236000000_etc/passwd", f.service.objectPath("../../etc/passwd", 0))
	assert.Equal(t, "uploads/1717236000000_dir/file.js", f.service.objectPath(`dir\file.js`, 0))
	assert.Equal(t, "uploads/1717236000000-2_dir/file.js", f.service.objectPath("dir/file.js", 2))
}

func TestUploadFolderKeepsSameNamedFilesApart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.UploadFolder(ctx, []UploadedFile{
		{Name: "index.js", Data: []byte("undefined")},
		{Name: "index.js", Data: []byte("while(true){}")},
	})
	require.NoError(t, err)

	require.Len(t, result.Files, 2)
	assert.NotEqual(t, result.Files[0].FilePath, result.Files[1].FilePath)
	assert.Equal(t, 2, f.blobs.Uploads())

	first, err := f.blobs.Download(ctx, result.Files[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "undefined", string(first))
	second, err := f.blobs.Download(ctx, result.Files[1].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "while(true){}", string(second))
}

func TestLintStoredFileKeepsHints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.blobs.Upload(ctx, "uploads/7_app.js", []byte("ok();\nwhile (true) {}\n"), "text/javascript")
	require.NoError(t, err)

	result, err := f.service.LintStoredFile(ctx, "uploads/7_app.js")
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	require.NotNil(t, result.Findings[0].Suggestion)
	assert.Equal(t, patterns.LogicalError().Hint, *result.Findings[0].Suggestion)

	stored, err := f.store.ListFindings(ctx, "7_app.js")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, patterns.LogicalError().Hint, findings.Deref(stored[0].Suggestion))
}
