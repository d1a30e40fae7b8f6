package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"meditranslate/pkg/models"
)

func sampleResult() *models.ScanResult {
	return &models.ScanResult{
		RunID:              "test-run",
		RawText:            "Prescription\nTake Metformin 500 mg daily.\n\nRefill in 30 days.",
		TranslatedDocument: "Receta\nTome Metformina 500 mg al día.\n\nResurtir en 30 días.",
		DocumentType:       models.DocumentTypePrescription,
		TargetLanguage:     "Spanish",
		Insights: []models.Insight{
			{
				Title:                 "Metformin",
				Description:           "Helps control blood sugar.",
				Category:              models.CategoryDrug,
				TranslatedTitle:       "Metformina",
				TranslatedDescription: "Ayuda a controlar el azúcar en la sangre.",
			},
			{
				Title:       "Milligrams",
				Description: "Dosage unit",
				Category:    models.CategoryInfo,
			},
		},
	}
}

// validatePDFFile runs the written report through the same relaxed
// validation the recognition path applies to incoming PDFs.
func validatePDFFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("report does not start with a PDF header: %q", data[:8])
	}
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), cfg); err != nil {
		t.Fatalf("report fails PDF validation: %v", err)
	}
	return data
}

func TestWritePDFCreatesValidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	r := NewRenderer(filepath.Join(t.TempDir(), "no-fonts"))

	if err := r.WritePDF(path, sampleResult()); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	data := validatePDFFile(t, path)
	if len(data) == 0 {
		t.Fatal("report file is empty")
	}
}

func TestWritePDFEmptyResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	r := NewRenderer(t.TempDir())

	if err := r.WritePDF(path, &models.ScanResult{}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	validatePDFFile(t, path)
}

func TestWritePDFHindiWithoutBundledFonts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hindi.pdf")
	r := NewRenderer(filepath.Join(t.TempDir(), "no-fonts"))

	result := sampleResult()
	result.TargetLanguage = "Hindi"
	if err := r.WritePDF(path, result); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	validatePDFFile(t, path)
}

func TestWritePDFPaginatesLongDocuments(t *testing.T) {
	paragraphs := make([]string, 120)
	for i := range paragraphs {
		paragraphs[i] = "Take one tablet by mouth every morning with a full glass of water."
	}
	result := sampleResult()
	result.RawText = strings.Join(paragraphs, "\n")
	result.TranslatedDocument = strings.Join(paragraphs, "\n")

	path := filepath.Join(t.TempDir(), "long.pdf")
	r := NewRenderer(t.TempDir())
	if err := r.WritePDF(path, result); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	data := validatePDFFile(t, path)

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	pages, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if pages < 2 {
		t.Errorf("pages = %d, want a paginated report", pages)
	}
}

func TestParagraphRows(t *testing.T) {
	rows := paragraphRows("one\n\nthree", "uno\ndos\ntres\ncuatro")

	want := [][2]string{
		{"one", "uno"},
		{"", "dos"},
		{"three", "tres"},
		{"", "cuatro"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestParagraphRowsSkipsFullyBlankPairs(t *testing.T) {
	rows := paragraphRows("a\n \nb", "x\n\ny")
	want := [][2]string{{"a", "x"}, {"b", "y"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, rows[i], want[i])
		}
	}
}
