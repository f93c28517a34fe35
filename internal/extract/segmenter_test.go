package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/convotutor/internal/models"
)

// buildPDF returns a minimal single-font PDF with one page per entry in pages.
// An empty entry yields a page with an empty content stream.
func buildPDF(pages []string) []byte {
	var buf bytes.Buffer
	n := 3 + 2*len(pages)
	offsets := make([]int, n+1)
	obj := func(id int, body string) {
		offsets[id] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		pageID, contentID := 4+2*i, 5+2*i
		obj(pageID, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentID))
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		obj(contentID, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", n+1)
	buf.WriteString("0000000000 65535 f \n")
	for id := 1; id <= n; id++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[id])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", n+1, xref)
	return buf.Bytes()
}

func TestSegment_pdfOneUnitPerPage(t *testing.T) {
	s := NewSegmenter()
	pdf := buildPDF([]string{"Berlin is in Germany", "Paris is the capital of France", "Rome is in Italy"})
	units, err := s.Segment(&models.DocumentInput{SourceID: "doc:geo", Name: "geo.pdf", Content: pdf})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	for i, u := range units {
		if u.Metadata.Page != i {
			t.Errorf("unit %d: page = %d", i, u.Metadata.Page)
		}
		if u.Metadata.SourceID != "doc:geo" {
			t.Errorf("unit %d: source id = %q", i, u.Metadata.SourceID)
		}
		if u.Metadata.Format != models.FormatPDF {
			t.Errorf("unit %d: format = %q", i, u.Metadata.Format)
		}
		if u.ID != fmt.Sprintf("doc:geo#%d", i) {
			t.Errorf("unit %d: id = %q", i, u.ID)
		}
	}
	if !strings.Contains(units[1].Content, "Paris") {
		t.Errorf("page 1 content = %q", units[1].Content)
	}
}

func TestSegment_pdfBlankPageKept(t *testing.T) {
	s := NewSegmenter()
	units, err := s.Segment(&models.DocumentInput{Name: "blank.pdf", Content: buildPDF([]string{"", "text", ""})})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if strings.TrimSpace(units[0].Content) != "" || strings.TrimSpace(units[2].Content) != "" {
		t.Errorf("blank pages should have empty content: %q, %q", units[0].Content, units[2].Content)
	}
	if units[2].Metadata.Page != 2 {
		t.Errorf("last page index = %d", units[2].Metadata.Page)
	}
}

func TestSegment_pdfMagicWithoutExtension(t *testing.T) {
	s := NewSegmenter()
	units, err := s.Segment(&models.DocumentInput{Name: "upload", Content: buildPDF([]string{"one", "two"})})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(units) != 2 || units[0].Metadata.Format != models.FormatPDF {
		t.Errorf("got %d units, format %q", len(units), units[0].Metadata.Format)
	}
}

func TestSegment_parseError(t *testing.T) {
	s := NewSegmenter()
	tests := []struct {
		name    string
		content []byte
	}{
		{"bad.pdf", []byte("this is not a pdf")},
		{"empty.pdf", nil},
		{"truncated.pdf", buildPDF([]string{"hello"})[:40]},
		{"bad.pptx", []byte("not a zip")},
		{"bad.docx", []byte("not a zip")},
		{"bad.xlsx", []byte("not a zip")},
		{"photo.png", []byte("\x89PNG\r\n\x1a\n\x00\xff")},
		{"report.doc", []byte("\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1")},
		{"upload", []byte("%PDX garbage \xff\xfe")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Segment(&models.DocumentInput{SourceID: "doc:x", Name: tt.name, Content: tt.content})
			if !errors.Is(err, models.ErrDocumentParse) {
				t.Fatalf("expected ErrDocumentParse, got %v", err)
			}
			var pe *models.DocumentParseError
			if !errors.As(err, &pe) || pe.Name != tt.name || pe.SourceID != "doc:x" {
				t.Errorf("parse error = %+v", pe)
			}
		})
	}
}

func TestSegment_nilDocument(t *testing.T) {
	if _, err := NewSegmenter().Segment(nil); !errors.Is(err, models.ErrDocumentParse) {
		t.Errorf("expected ErrDocumentParse, got %v", err)
	}
}

func TestSegment_derivesSourceID(t *testing.T) {
	s := NewSegmenter()
	doc := &models.DocumentInput{Name: "notes.txt", Content: []byte("hello")}
	a, err := s.Segment(doc)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Segment(doc)
	if a[0].Metadata.SourceID == "" || a[0].Metadata.SourceID != b[0].Metadata.SourceID {
		t.Errorf("derived source ids: %q vs %q", a[0].Metadata.SourceID, b[0].Metadata.SourceID)
	}
	if a[0].Metadata.SourceName != "notes.txt" {
		t.Errorf("source name = %q", a[0].Metadata.SourceName)
	}
}

func TestSegment_plainPages(t *testing.T) {
	s := NewSegmenter()
	units, err := s.Segment(&models.DocumentInput{Name: "a.txt", Content: []byte("page one\fpage two\f")})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if units[0].Content != "page one" || units[1].Content != "page two" || units[2].Content != "" {
		t.Errorf("got %q %q %q", units[0].Content, units[1].Content, units[2].Content)
	}
}

func TestSegment_plainSinglePage(t *testing.T) {
	s := NewSegmenter()
	units, err := s.Segment(&models.DocumentInput{Name: "a.md", Content: []byte("Hello world\nLine 2")})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(units) != 1 || units[0].Content != "Hello world\nLine 2" {
		t.Errorf("got %+v", units)
	}
}

func TestSegment_plainInvalidUTF8(t *testing.T) {
	units, err := NewSegmenter().Segment(&models.DocumentInput{Name: "a.rst", Content: []byte("hello\x80world")})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if units[0].Content != "hello\uFFFDworld" {
		t.Errorf("got %q", units[0].Content)
	}
}

func TestSegment_excelSheetPerPage(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Second"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Second", "A1", "More")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	units, err := NewSegmenter().Segment(&models.DocumentInput{Name: "data.xlsx", Content: buf.Bytes()})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Content != "Title\nValue 1\tValue 2" {
		t.Errorf("sheet 1 = %q", units[0].Content)
	}
	if units[1].Content != "More" || units[1].Metadata.Page != 1 {
		t.Errorf("sheet 2 = %+v", units[1])
	}
}

// minimalDocx returns a .docx zip whose main document holds text in one <w:t> run.
func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestSegment_docxSinglePage(t *testing.T) {
	units, err := NewSegmenter().Segment(&models.DocumentInput{Name: "a.docx", Content: minimalDocx("Searchable docx content")})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(units) != 1 || units[0].Content != "Searchable docx content" {
		t.Errorf("got %+v", units)
	}
}

func TestSegment_docxContentTypes(t *testing.T) {
	for _, override := range []string{
		`<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		`<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		var buf bytes.Buffer
		w := zip.NewWriter(&buf)
		ct, _ := w.Create(contentTypesPath)
		_, _ = ct.Write([]byte(`<Types>` + override + `</Types>`))
		fw, _ := w.Create("word/document2.xml")
		_, _ = fw.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>From document2</w:t></w:r></w:p></w:body></w:document>`))
		_ = w.Close()

		units, err := NewSegmenter().Segment(&models.DocumentInput{Name: "b.docx", Content: buf.Bytes()})
		if err != nil {
			t.Fatalf("Segment: %v", err)
		}
		if units[0].Content != "From document2" {
			t.Errorf("override %s: got %q", override, units[0].Content)
		}
	}
}

func TestSegment_pptxSlideOrder(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, n := range []int{10, 2, 1} {
		fw, _ := w.Create(fmt.Sprintf("ppt/slides/slide%d.xml", n))
		_, _ = fmt.Fprintf(fw, `<p:sld><p:txBody><a:p><a:r><a:t>Slide %d</a:t></a:r></a:p></p:txBody></p:sld>`, n)
	}
	rels, _ := w.Create("ppt/slides/_rels/slide1.xml.rels")
	_, _ = rels.Write([]byte(`<Relationships/>`))
	_ = w.Close()

	units, err := NewSegmenter().Segment(&models.DocumentInput{Name: "deck.pptx", Content: buf.Bytes()})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	want := []string{"Slide 1", "Slide 2", "Slide 10"}
	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(units))
	}
	for i, u := range units {
		if u.Content != want[i] {
			t.Errorf("unit %d = %q, want %q", i, u.Content, want[i])
		}
	}
}

func TestSegmentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	units, err := NewSegmenter().SegmentFile(path)
	if err != nil {
		t.Fatalf("SegmentFile: %v", err)
	}
	if len(units) != 1 || units[0].Content != "File content" || units[0].Metadata.SourceName != "test.txt" {
		t.Errorf("got %+v", units)
	}
	if _, err := NewSegmenter().SegmentFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"a.PDF", "", models.FormatPDF},
		{"a.docx", "", models.FormatDOCX},
		{"a.xlsx", "", models.FormatXLSX},
		{"a.pptx", "", models.FormatPPTX},
		{"a.txt", "", models.FormatPlain},
		{"", "%PDF-1.7", models.FormatPDF},
		{"scan.bin", "%PDF-1.7", models.FormatPDF},
		{"upload", "plain words", models.FormatPlain},
		{"upload", "\xff\xfe", ""},
		{"a.xyz", "raw", ""},
		{"photo.png", "\x89PNG", ""},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.name, []byte(tt.content)); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
	if !Supported("x.PDF") || Supported("x.odp") {
		t.Error("Supported mismatch")
	}
}
