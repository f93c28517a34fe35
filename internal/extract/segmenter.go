// Package extract splits documents into per-page text units.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/convotutor/internal/fileid"
	"github.com/hyperjump/convotutor/internal/models"
)

var pdfMagic = []byte("%PDF-")

// SupportedExtensions lists the file extensions the segmenter understands.
var SupportedExtensions = []string{".pdf", ".docx", ".xlsx", ".pptx", ".txt", ".md", ".rst"}

// Segmenter turns raw document bytes into one text unit per page.
type Segmenter struct{}

// NewSegmenter returns a new Segmenter.
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Segment returns one TextUnit per page of doc, in document order. Pages without
// extractable text still produce a unit with empty content, so the page index of
// the i-th unit is always i. A document that cannot be parsed yields a
// *models.DocumentParseError. The content bytes are not retained.
func (s *Segmenter) Segment(doc *models.DocumentInput) ([]models.TextUnit, error) {
	if doc == nil {
		return nil, &models.DocumentParseError{Err: fmt.Errorf("nil document")}
	}
	sourceID := doc.SourceID
	if sourceID == "" {
		sourceID = fileid.SourceID(doc.Name, doc.Content)
	}
	format := DetectFormat(doc.Name, doc.Content)
	if format == "" {
		return nil, &models.DocumentParseError{SourceID: sourceID, Name: doc.Name,
			Err: fmt.Errorf("unsupported document format %q", filepath.Ext(doc.Name))}
	}
	pages, err := s.pages(format, doc.Content)
	if err != nil {
		return nil, &models.DocumentParseError{SourceID: sourceID, Name: doc.Name, Err: err}
	}
	units := make([]models.TextUnit, len(pages))
	for i, text := range pages {
		units[i] = models.TextUnit{
			ID:      fileid.UnitID(sourceID, i),
			Content: text,
			Metadata: models.UnitMetadata{
				Page:       i,
				SourceID:   sourceID,
				SourceName: doc.Name,
				Format:     format,
			},
		}
	}
	return units, nil
}

// SegmentFile reads the file at path and segments it under its base name.
func (s *Segmenter) SegmentFile(path string) ([]models.TextUnit, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return s.Segment(doc)
}

// ReadDocument loads the file at path as a DocumentInput named after its base name.
func ReadDocument(path string) (*models.DocumentInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &models.DocumentInput{Name: filepath.Base(path), Content: content}, nil
}

func (s *Segmenter) pages(format string, content []byte) ([]string, error) {
	switch format {
	case models.FormatPDF:
		return extractPDF(content)
	case models.FormatDOCX:
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	case models.FormatXLSX:
		return extractExcel(content)
	case models.FormatPPTX:
		return extractPPTX(content)
	case models.FormatPlain:
		return extractPlain(content)
	}
	return nil, fmt.Errorf("unsupported document format %q", format)
}

// DetectFormat picks the document format from the file extension, falling back to
// the PDF magic number for unnamed or oddly named uploads. An upload without an
// extension is plain text only when it is valid UTF-8. It returns "" when the
// format is not supported.
func DetectFormat(name string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return models.FormatPDF
	case ".docx":
		return models.FormatDOCX
	case ".xlsx":
		return models.FormatXLSX
	case ".pptx":
		return models.FormatPPTX
	case ".txt", ".md", ".rst":
		return models.FormatPlain
	}
	if bytes.HasPrefix(content, pdfMagic) {
		return models.FormatPDF
	}
	if ext == "" && utf8.Valid(content) {
		return models.FormatPlain
	}
	return ""
}

// Supported reports whether the extension of name is one of SupportedExtensions.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
