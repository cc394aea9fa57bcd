package documents

import (
	"context"
	"fmt"
	"strings"

	"betterats/internal/errors"
	"betterats/internal/types"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the plain text of every page of a PDF file.
type PDFExtractor struct{}

func (PDFExtractor) Extract(ctx context.Context, path string) (doc types.Document, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewExtractionError(path, "PDF is corrupt", fmt.Errorf("%v", r)).
				WithContext("mime_type", MimeTypePDF)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return types.Document{}, errors.NewExtractionError(path, "failed to open PDF", err).
			WithContext("mime_type", MimeTypePDF)
	}
	defer f.Close()

	var text strings.Builder
	for pageIndex := 1; pageIndex <= r.NumPage(); pageIndex++ {
		if err := ctx.Err(); err != nil {
			return types.Document{}, err
		}

		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return types.Document{}, errors.NewExtractionError(path,
				fmt.Sprintf("failed to read page %d", pageIndex), err).
				WithContext("mime_type", MimeTypePDF)
		}
		text.WriteString(content)
		text.WriteString("\n\n")
	}

	return types.Document{
		Content:    strings.TrimSpace(text.String()),
		SourcePath: path,
		MimeType:   MimeTypePDF,
	}, nil
}
