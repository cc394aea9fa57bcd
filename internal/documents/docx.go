package documents

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"betterats/internal/errors"
	"betterats/internal/types"
)

const docxBodyPart = "word/document.xml"

// DOCXExtractor reads the text runs of a Word document body. Paragraphs
// become lines; tabs and line breaks are kept.
type DOCXExtractor struct{}

func (DOCXExtractor) Extract(ctx context.Context, path string) (types.Document, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return types.Document{}, errors.NewExtractionError(path, "DOCX is not a valid archive", err).
			WithContext("mime_type", MimeTypeDOCX)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != docxBodyPart {
			continue
		}
		if err := ctx.Err(); err != nil {
			return types.Document{}, err
		}

		rc, err := file.Open()
		if err != nil {
			return types.Document{}, errors.NewExtractionError(path, "cannot open document body", err).
				WithContext("mime_type", MimeTypeDOCX)
		}
		text, err := documentText(rc)
		rc.Close()
		if err != nil {
			return types.Document{}, errors.NewExtractionError(path, "document body is not valid XML", err).
				WithContext("mime_type", MimeTypeDOCX)
		}

		return types.Document{
			Content:    text,
			SourcePath: path,
			MimeType:   MimeTypeDOCX,
		}, nil
	}

	return types.Document{}, errors.NewExtractionError(path,
		fmt.Sprintf("archive has no %s part", docxBodyPart), nil).
		WithContext("mime_type", MimeTypeDOCX)
}

func documentText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out    strings.Builder
		line   strings.Builder
		inText bool
	)
	flush := func() {
		if s := strings.TrimRight(line.String(), " \t"); s != "" {
			out.WriteString(s)
			out.WriteString("\n")
		}
		line.Reset()
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteString("\t")
			case "br", "cr":
				line.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()

	return strings.TrimSpace(out.String()), nil
}
