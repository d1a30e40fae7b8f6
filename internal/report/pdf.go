// Package report renders a completed scan into shareable artifacts: a
// bilingual PDF report and an HTML rendition of explanation markdown.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"meditranslate/internal/logger"
	"meditranslate/pkg/models"
)

// Bundled font files looked up in the fonts directory. Registration
// falls back to core Helvetica when a file is absent, matching what the
// report can render without downloads.
const (
	latinFontFile      = "NotoSans-Regular.ttf"
	devanagariFontFile = "NotoSansDevanagari-Regular.ttf"
)

const (
	bodyFontSize  = 9.0
	lineHeight    = 5.0
	cellPadding   = 1.0
	rowYPadding   = 2.0
	sectionSpacer = 8.0
)

// Renderer writes scan results as PDF reports.
type Renderer struct {
	fontsDir string
	log      zerolog.Logger
}

// NewRenderer builds a renderer that loads Unicode fonts from fontsDir.
func NewRenderer(fontsDir string) *Renderer {
	return &Renderer{
		fontsDir: fontsDir,
		log:      logger.WithComponent("report"),
	}
}

// fontSet is the pair of font families a report draws with, one for the
// English column and one for the target-language column, each with the
// encoder its family needs.
type fontSet struct {
	latin    string
	target   string
	latinTr  func(string) string
	targetTr func(string) string
}

// WritePDF renders the result as a bilingual report: title, meta line,
// a two-column ORIGINAL TEXT | <LANGUAGE> table of paragraph rows, and
// one card per insight with its translated half.
func (r *Renderer) WritePDF(path string, result *models.ScanResult) error {
	const op = "WritePDF"

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(true, 15)
	fonts := r.registerFonts(pdf, result.TargetLanguage)
	pdf.AddPage()

	docType := result.DocumentType.String()
	if docType == "" {
		docType = "Unknown"
	}
	language := result.TargetLanguage
	if language == "" {
		language = "English"
	}

	pdf.SetFont(fonts.latin, "B", 18)
	pdf.CellFormat(0, 10, fonts.latinTr("MediTranslate Report"), "", 1, "L", false, 0, "")
	pdf.SetFont(fonts.latin, "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, fonts.latinTr(fmt.Sprintf("Type: %s | Language: %s", docType, language)), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(sectionSpacer)

	pdf.SetDrawColor(128, 128, 128)
	r.twoColumnRow(pdf, fonts, "B", "ORIGINAL TEXT", strings.ToUpper(language), true)
	for _, row := range paragraphRows(result.RawText, result.TranslatedDocument) {
		r.twoColumnRow(pdf, fonts, "", row[0], row[1], false)
	}

	if len(result.Insights) > 0 {
		pdf.Ln(sectionSpacer)
		pdf.SetFont(fonts.latin, "B", 14)
		pdf.CellFormat(0, 8, fonts.latinTr("Medical Insights"), "", 1, "L", false, 0, "")
		pdf.Ln(2)
		for _, insight := range result.Insights {
			r.insightCard(pdf, fonts, insight)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return NewReportError(op, fmt.Errorf("%w: %v", ErrRenderFailed, err), path)
	}
	r.log.Info().Str("path", path).Int("insights", len(result.Insights)).Msg("PDF report saved")
	return nil
}

// insightCard draws one bilingual card: bold title row, description row.
// Missing translations repeat the English side so the card stays full.
func (r *Renderer) insightCard(pdf *fpdf.Fpdf, fonts fontSet, insight models.Insight) {
	title := insight.Title
	if title == "" {
		title = "Unknown"
	}
	translatedTitle := insight.TranslatedTitle
	if translatedTitle == "" {
		translatedTitle = title
	}
	description := insight.Description
	translatedDescription := insight.TranslatedDescription
	if translatedDescription == "" {
		translatedDescription = description
	}
	if insight.Category != "" {
		title = fmt.Sprintf("%s [%s]", title, insight.Category)
	}

	r.twoColumnRow(pdf, fonts, "B", title, translatedTitle, true)
	r.twoColumnRow(pdf, fonts, "", description, translatedDescription, false)
	pdf.Ln(3)
}

// twoColumnRow draws one table row of two equal-width bordered cells.
// The row height follows the taller cell; a row that no longer fits
// starts a new page first.
func (r *Renderer) twoColumnRow(pdf *fpdf.Fpdf, fonts fontSet, style, left, right string, fill bool) {
	pageWidth, pageHeight := pdf.GetPageSize()
	marginLeft, _, marginRight, marginBottom := pdf.GetMargins()
	colWidth := (pageWidth - marginLeft - marginRight) / 2
	textWidth := colWidth - 2*cellPadding

	left = fonts.latinTr(left)
	right = fonts.targetTr(right)

	pdf.SetFont(fonts.latin, style, bodyFontSize)
	leftLines := pdf.SplitText(left, textWidth)
	pdf.SetFont(fonts.target, style, bodyFontSize)
	rightLines := pdf.SplitText(right, textWidth)

	lines := len(leftLines)
	if len(rightLines) > lines {
		lines = len(rightLines)
	}
	if lines == 0 {
		lines = 1
	}
	rowHeight := float64(lines)*lineHeight + rowYPadding

	if pdf.GetY()+rowHeight > pageHeight-marginBottom {
		pdf.AddPage()
	}

	x, y := marginLeft, pdf.GetY()
	rectStyle := "D"
	if fill {
		pdf.SetFillColor(245, 245, 245)
		rectStyle = "FD"
	}
	pdf.Rect(x, y, colWidth, rowHeight, rectStyle)
	pdf.Rect(x+colWidth, y, colWidth, rowHeight, rectStyle)

	pdf.SetXY(x+cellPadding, y+cellPadding)
	pdf.SetFont(fonts.latin, style, bodyFontSize)
	pdf.MultiCell(textWidth, lineHeight, left, "", "L", false)

	pdf.SetXY(x+colWidth+cellPadding, y+cellPadding)
	pdf.SetFont(fonts.target, style, bodyFontSize)
	pdf.MultiCell(textWidth, lineHeight, right, "", "L", false)

	pdf.SetXY(x, y+rowHeight)
}

// registerFonts loads the bundled Noto fonts when present. The target
// column uses the Devanagari face only for Hindi; every miss degrades
// to core Helvetica the way the rest of the report does.
func (r *Renderer) registerFonts(pdf *fpdf.Fpdf, language string) fontSet {
	identity := func(s string) string { return s }
	coreTr := pdf.UnicodeTranslatorFromDescriptor("")
	fonts := fontSet{
		latin:    "Helvetica",
		target:   "Helvetica",
		latinTr:  coreTr,
		targetTr: coreTr,
	}

	latinPath := filepath.Join(r.fontsDir, latinFontFile)
	if _, err := os.Stat(latinPath); err == nil {
		pdf.AddUTF8Font("NotoSans", "", latinPath)
		pdf.AddUTF8Font("NotoSans", "B", latinPath)
		fonts.latin = "NotoSans"
		fonts.latinTr = identity
	} else {
		r.log.Debug().Str("path", latinPath).Msg("Latin font not bundled, using Helvetica")
	}

	if language == "Hindi" {
		hindiPath := filepath.Join(r.fontsDir, devanagariFontFile)
		if _, err := os.Stat(hindiPath); err == nil {
			pdf.AddUTF8Font("NotoSansDevanagari", "", hindiPath)
			pdf.AddUTF8Font("NotoSansDevanagari", "B", hindiPath)
			fonts.target = "NotoSansDevanagari"
			fonts.targetTr = identity
		} else {
			r.log.Warn().Str("path", hindiPath).Msg("Devanagari font not bundled, Hindi text may not render")
		}
	} else {
		fonts.target = fonts.latin
		fonts.targetTr = fonts.latinTr
	}
	return fonts
}

// paragraphRows pairs the paragraphs of the original and translated
// text positionally, dropping rows where both sides are blank.
func paragraphRows(original, translated string) [][2]string {
	origParas := strings.Split(original, "\n")
	transParas := strings.Split(translated, "\n")

	n := len(origParas)
	if len(transParas) > n {
		n = len(transParas)
	}
	rows := make([][2]string, 0, n)
	for i := 0; i < n; i++ {
		var orig, trans string
		if i < len(origParas) {
			orig = origParas[i]
		}
		if i < len(transParas) {
			trans = transParas[i]
		}
		if strings.TrimSpace(orig) == "" && strings.TrimSpace(trans) == "" {
			continue
		}
		rows = append(rows, [2]string{orig, trans})
	}
	return rows
}
