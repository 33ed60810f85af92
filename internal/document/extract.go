package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"

	"github.com/rakhadavedra/sow-analysis/internal"
)

// Supported upload extensions and their MIME types.
var allowedExtensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func contentTypeFor(fileName string) (string, bool) {
	ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(fileName))]
	return ct, ok
}

// ExtractText pulls plain text out of an uploaded document. Plain text and
// markdown pass through, PDF and DOCX are unpacked.
func ExtractText(fileName string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md":
		return string(data), nil
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	default:
		return "", internal.NewValidationError(
			fmt.Sprintf("unsupported file type: %s", filepath.Ext(fileName)),
			internal.ErrCodeUnsupportedFileType)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdfreader.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", internal.NewValidationError("could not read PDF content", internal.ErrCodeExtractionFailed).WithCause(err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "", internal.NewValidationError("PDF contains no extractable text", internal.ErrCodeExtractionFailed)
	}
	return result, nil
}

// docx paragraph XML, only the pieces needed for text recovery.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func extractDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", internal.NewValidationError("could not read DOCX archive", internal.ErrCodeExtractionFailed).WithCause(err)
	}

	var docXML []byte
	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", internal.NewValidationError("could not open DOCX document part", internal.ErrCodeExtractionFailed).WithCause(err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", internal.NewValidationError("could not read DOCX document part", internal.ErrCodeExtractionFailed).WithCause(err)
		}
		break
	}
	if docXML == nil {
		return "", internal.NewValidationError("DOCX archive has no document part", internal.ErrCodeExtractionFailed)
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", internal.NewValidationError("could not parse DOCX content", internal.ErrCodeExtractionFailed).WithCause(err)
	}

	var sb strings.Builder
	for _, p := range doc.Body.Paragraphs {
		for _, r := range p.Runs {
			sb.WriteString(r.Text)
		}
		sb.WriteString("\n")
	}

	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "", internal.NewValidationError("DOCX contains no extractable text", internal.ErrCodeExtractionFailed)
	}
	return result, nil
}
