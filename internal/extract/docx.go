package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

const contentTypesPath = "[Content_Types].xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wtTag matches <w:t>text</w:t> with any attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// overrideTag matches one Override element of [Content_Types].xml.
var overrideTag = regexp.MustCompile(`<Override\s[^>]*>`)

var partNameAttr = regexp.MustCompile(`PartName="([^"]+)"`)

// mainDocumentPath returns the main document part named in [Content_Types].xml,
// without the leading slash, or "" when none is declared.
func mainDocumentPath(files map[string]*zip.File) string {
	f, ok := files[contentTypesPath]
	if !ok {
		return ""
	}
	data, err := readZipFile(f)
	if err != nil {
		return ""
	}
	for _, tag := range overrideTag.FindAllString(string(data), -1) {
		if !strings.Contains(tag, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := partNameAttr.FindStringSubmatch(tag); m != nil {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

// extractDOCX returns the text of a .docx body as a single page. Word documents
// carry no fixed pagination, so every <w:t> run is joined with spaces.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	docPath := mainDocumentPath(files)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	f, ok := files[docPath]
	if !ok {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	docXML, err := readZipFile(f)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	parts := wtTag.FindAllStringSubmatch(string(docXML), -1)
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		words = append(words, strings.TrimSpace(p[1]))
	}
	return strings.TrimSpace(strings.Join(words, " ")), nil
}
