// Package documents turns uploaded files into plain text documents.
package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"betterats/internal/errors"
	"betterats/internal/types"
	"betterats/internal/utils"
)

const (
	MimeTypePDF  = "application/pdf"
	MimeTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extractor converts a single file into a Document.
type Extractor interface {
	Extract(ctx context.Context, path string) (types.Document, error)
}

// route binds a declared file type to its extractor.
type route struct {
	mimeType   string
	extensions []string
	extractor  Extractor
}

// Loader routes files to extractors by extension. The routes form an
// allow-list: files of any other type are skipped with a warning, so callers
// must not assume every path yields a document.
type Loader struct {
	routes      []route
	maxFileSize int64
	logger      *errors.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxFileSize rejects files larger than n bytes. Zero disables the check.
func WithMaxFileSize(n int64) Option {
	return func(l *Loader) { l.maxFileSize = n }
}

// WithExtractor replaces the extractor used for mimeType.
func WithExtractor(mimeType string, e Extractor) Option {
	return func(l *Loader) {
		for i := range l.routes {
			if l.routes[i].mimeType == mimeType {
				l.routes[i].extractor = e
			}
		}
	}
}

// NewLoader creates a loader for PDF and DOCX files.
func NewLoader(logger *errors.Logger, opts ...Option) *Loader {
	l := &Loader{
		routes: []route{
			{mimeType: MimeTypePDF, extensions: []string{".pdf"}, extractor: PDFExtractor{}},
			{mimeType: MimeTypeDOCX, extensions: []string{".docx"}, extractor: DOCXExtractor{}},
		},
		logger: logger,
	}
	if l.logger == nil {
		l.logger = errors.NewLoggerWithWriter(io.Discard, slog.LevelError)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MimeTypeFor returns the declared type of path, or false if it is unsupported.
func MimeTypeFor(path string) (string, bool) {
	switch utils.GetFileExtension(path) {
	case ".pdf":
		return MimeTypePDF, true
	case ".docx":
		return MimeTypeDOCX, true
	}
	return "", false
}

func (l *Loader) routeFor(path string) (int, bool) {
	ext := utils.GetFileExtension(path)
	for i, r := range l.routes {
		for _, e := range r.extensions {
			if e == ext {
				return i, true
			}
		}
	}
	return 0, false
}

// Load extracts every supported file. Documents are grouped by type in route
// order (PDF, then DOCX) and keep submission order within a type. The first
// file that cannot be read or parsed aborts the load with an extraction error.
func (l *Loader) Load(ctx context.Context, paths []string) ([]types.Document, error) {
	buckets := make([][]string, len(l.routes))
	for _, path := range paths {
		i, ok := l.routeFor(path)
		if !ok {
			l.logger.Warn("Skipping unsupported file", "path", path, "extension", utils.GetFileExtension(path))
			continue
		}
		buckets[i] = append(buckets[i], path)
	}

	docs := make([]types.Document, 0, len(paths))
	for i, r := range l.routes {
		for _, path := range buckets[i] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			doc, err := l.extract(ctx, r, path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			l.logger.Debug("Document extracted",
				"path", path,
				"mime_type", r.mimeType,
				"characters", len(doc.Content))
		}
	}
	return docs, nil
}

func (l *Loader) extract(ctx context.Context, r route, path string) (types.Document, error) {
	if err := utils.ValidateInputFile(path); err != nil {
		return types.Document{}, errors.NewExtractionError(path,
			fmt.Sprintf("cannot open %s", path), err).WithContext("mime_type", r.mimeType)
	}
	if l.maxFileSize > 0 {
		info, err := os.Stat(path)
		if err == nil && info.Size() > l.maxFileSize {
			tooLarge := errors.NewExtractionError(path,
				fmt.Sprintf("%s is %s, above the %s limit", path,
					utils.FormatFileSize(info.Size()), utils.FormatFileSize(l.maxFileSize)), nil).
				WithContext("mime_type", r.mimeType)
			tooLarge.Code = errors.ErrCodeFileTooLarge
			return types.Document{}, tooLarge
		}
	}

	doc, err := r.extractor.Extract(ctx, path)
	if err != nil {
		if errors.HasType(err, errors.ErrorTypeExtraction) || ctx.Err() != nil {
			return types.Document{}, err
		}
		return types.Document{}, errors.NewExtractionError(path,
			fmt.Sprintf("failed to extract text from %s", path), err).WithContext("mime_type", r.mimeType)
	}

	if doc.SourcePath == "" {
		doc.SourcePath = path
	}
	if doc.MimeType == "" {
		doc.MimeType = r.mimeType
	}
	return doc, nil
}
