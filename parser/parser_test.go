package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractTxt(t *testing.T) {
	reg := NewRegistry()
	text, err := reg.Extract(context.Background(), "resume.txt", []byte("John Smith\r\n\r\n\r\nSenior Engineer\x00 at Acme\n"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "John Smith\n\nSenior Engineer at Acme" {
		t.Errorf("cleaned text = %q", text)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"resume.doc", "resume.xls", "resume.rtf", "resume"} {
		_, err := reg.Extract(context.Background(), name, []byte("data"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Extract(%q) err = %v, want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Extract(context.Background(), "blank.txt", []byte("   \n\n  "))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

// buildDOCX assembles a minimal valid DOCX container in memory.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Priya Nair</w:t></w:r></w:p>
    <w:p><w:r><w:t>Data </w:t></w:r><w:r><w:t>Engineer</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Skills</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Spark, Airflow</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

	reg := NewRegistry()
	text, err := reg.Extract(context.Background(), "priya.docx", buildDOCX(t, doc))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Priya Nair") {
		t.Errorf("missing paragraph text: %q", text)
	}
	if !strings.Contains(text, "Data Engineer") {
		t.Errorf("split runs not joined: %q", text)
	}
	if !strings.Contains(text, "Skills | Spark, Airflow") {
		t.Errorf("table row not extracted: %q", text)
	}
}

func TestExtractDOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/other.xml")
	w.Write([]byte("<x/>"))
	zw.Close()

	reg := NewRegistry()
	if _, err := reg.Extract(context.Background(), "broken.docx", buf.Bytes()); err == nil {
		t.Error("expected error for DOCX without document.xml")
	}
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Candidate")
	f.SetCellValue("Sheet1", "B1", "Ravi Kumar")
	f.SetCellValue("Sheet1", "A2", "Skills")
	f.SetCellValue("Sheet1", "B2", "SAP, Tally")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	text, err := reg.Extract(context.Background(), "export.xlsx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Candidate | Ravi Kumar") {
		t.Errorf("row 1 missing: %q", text)
	}
	if !strings.Contains(text, "Skills | SAP, Tally") {
		t.Errorf("row 2 missing: %q", text)
	}
}

func TestExtractPDFGarbage(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Extract(context.Background(), "junk.pdf", []byte("not a pdf at all")); err == nil {
		t.Error("expected error for non-PDF bytes")
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\r\nb", "a\nb"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"  \n line \t\n", "line"},
		{"tab\tkept", "tab\tkept"},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
