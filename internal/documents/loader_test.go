package documents

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"betterats/internal/errors"
	"betterats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Ada Lovelace</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Email: </w:t></w:r><w:r><w:t>ada@example.com</w:t></w:r></w:p>
    <w:p><w:r><w:t>Programmer</w:t><w:tab/><w:t>1842</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDOCX(t *testing.T, path, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(docxBodyPart)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

// stubExtractor returns a fixed document and records the order of calls.
type stubExtractor struct {
	mimeType string
	calls    *[]string
}

func (s stubExtractor) Extract(_ context.Context, path string) (types.Document, error) {
	*s.calls = append(*s.calls, path)
	return types.Document{Content: "text of " + filepath.Base(path), MimeType: s.mimeType}, nil
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	return path
}

func TestDOCXExtractor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.docx")
	writeDOCX(t, path, documentXML)

	doc, err := DOCXExtractor{}.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace\nEmail: ada@example.com\nProgrammer\t1842", doc.Content)
	assert.Equal(t, path, doc.SourcePath)
	assert.Equal(t, MimeTypeDOCX, doc.MimeType)
}

func TestDOCXExtractorFailures(t *testing.T) {
	dir := t.TempDir()

	notZip := touch(t, dir, "plain.docx")

	noBody := filepath.Join(dir, "nobody.docx")
	f, err := os.Create(noBody)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	badXML := filepath.Join(dir, "bad.docx")
	writeDOCX(t, badXML, "<w:document><w:body>")

	for _, path := range []string{notZip, noBody, badXML} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := DOCXExtractor{}.Extract(context.Background(), path)
			appErr, ok := errors.Find(err, errors.ErrorTypeExtraction)
			require.True(t, ok, "expected extraction error, got %v", err)
			assert.Equal(t, path, appErr.Context["path"])
		})
	}
}

func TestPDFExtractorRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0600))

	_, err := PDFExtractor{}.Extract(context.Background(), path)
	appErr, ok := errors.Find(err, errors.ErrorTypeExtraction)
	require.True(t, ok, "expected extraction error, got %v", err)
	assert.Equal(t, path, appErr.Context["path"])
}

func TestLoaderRoutesAndSkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	loader := NewLoader(nil,
		WithExtractor(MimeTypePDF, stubExtractor{mimeType: MimeTypePDF, calls: &calls}),
		WithExtractor(MimeTypeDOCX, stubExtractor{mimeType: MimeTypeDOCX, calls: &calls}),
	)

	paths := []string{
		touch(t, dir, "letter.docx"),
		touch(t, dir, "cv.pdf"),
		touch(t, dir, "notes.txt"),
		touch(t, dir, "portfolio.PDF"),
		touch(t, dir, "photo.png"),
	}

	docs, err := loader.Load(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// PDFs first in submission order, then DOCX
	assert.Equal(t, paths[1], docs[0].SourcePath)
	assert.Equal(t, paths[3], docs[1].SourcePath)
	assert.Equal(t, paths[0], docs[2].SourcePath)
	assert.Equal(t, MimeTypeDOCX, docs[2].MimeType)
	assert.Equal(t, "text of cv.pdf", docs[0].Content)
	assert.Equal(t, []string{paths[1], paths[3], paths[0]}, calls)
}

func TestLoaderFailsFast(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	loader := NewLoader(nil, WithExtractor(MimeTypeDOCX, stubExtractor{mimeType: MimeTypeDOCX, calls: &calls}))

	corrupt := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0600))

	_, err := loader.Load(context.Background(), []string{corrupt, touch(t, dir, "letter.docx")})
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeExtraction))
	assert.Empty(t, calls, "loading must stop at the first failure")
}

func TestLoaderMissingFileAndSizeLimit(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	stub := stubExtractor{mimeType: MimeTypePDF, calls: &calls}

	missing := filepath.Join(dir, "missing.pdf")
	_, err := NewLoader(nil, WithExtractor(MimeTypePDF, stub)).Load(context.Background(), []string{missing})
	appErr, ok := errors.Find(err, errors.ErrorTypeExtraction)
	require.True(t, ok)
	assert.Equal(t, missing, appErr.Context["path"])

	big := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(big, make([]byte, 2048), 0600))
	_, err = NewLoader(nil, WithExtractor(MimeTypePDF, stub), WithMaxFileSize(1024)).
		Load(context.Background(), []string{big})
	appErr, ok = errors.Find(err, errors.ErrorTypeExtraction)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileTooLarge, appErr.Code)
	assert.Empty(t, calls)
}

func TestLoaderNoSupportedFiles(t *testing.T) {
	docs, err := NewLoader(nil).Load(context.Background(), []string{"a.txt", "b.md"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMimeTypeFor(t *testing.T) {
	mt, ok := MimeTypeFor("/x/CV.Pdf")
	assert.True(t, ok)
	assert.Equal(t, MimeTypePDF, mt)

	_, ok = MimeTypeFor("cv.doc")
	assert.False(t, ok)
}
