package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"meditranslate/internal/logger"
	"meditranslate/pkg/models"
)

// Analyzer classifies documents and extracts insights using an injected
// lexicon. Safe to reuse across runs; extraction is stateless.
type Analyzer struct {
	lex *Lexicon
	log zerolog.Logger
}

// NewAnalyzer returns an Analyzer backed by the given lexicon.
func NewAnalyzer(lex *Lexicon) *Analyzer {
	return &Analyzer{
		lex: lex,
		log: logger.WithComponent("analysis"),
	}
}

// Lexicon returns the lexicon backing this analyzer.
func (a *Analyzer) Lexicon() *Lexicon { return a.lex }

const (
	// Backup descriptions this short are too ambiguous for substring search.
	minBackupDescLen = 4

	// Cap on backup matches per document to bound false-positive exposure.
	backupMatchLimit = 3

	backupDescription = "Medical diagnosis detected via International Database."
)

// Fixed extraction rules applied after the curated pass.
var (
	bloodPressureRe = regexp.MustCompile(`\b\d{2,3}/\d{2,3}\b`)
	fahrenheitRe    = regexp.MustCompile(`(?i)\b(99\.[5-9]|1\d{2}(\.\d)?)\s*F\b`)
	celsiusRe       = regexp.MustCompile(`(?i)\b(3[7-9](\.\d)?|4\d(\.\d)?)\s*C\b`)
	dosageRe        = regexp.MustCompile(`\btake\s+\d+(\.\d)?\s+(tablets|pills|capsules)`)
)

// ExtractInsights scans text with three layered passes: curated whole-word
// terms, fixed pattern rules, then a capped substring scan over the backup
// code lexicon. The returned set is in discovery order and never contains
// two insights with the same case-insensitive title.
func (a *Analyzer) ExtractInsights(text string) []models.Insight {
	lower := strings.ToLower(text)

	insights := make([]models.Insight, 0, 8)
	seenTitles := make(map[string]bool)
	foundTerms := make(map[string]bool)

	add := func(ins models.Insight) bool {
		key := strings.ToLower(ins.Title)
		if seenTitles[key] {
			return false
		}
		seenTitles[key] = true
		insights = append(insights, ins)
		return true
	}

	// Curated pass: whole-word matches emit their templates. A matched
	// term counts as found even when its title was already taken, so the
	// backup pass can still treat it as covered.
	for i, entry := range a.lex.primary {
		if !a.lex.primaryRe[i].MatchString(lower) {
			continue
		}
		foundTerms[entry.Term] = true
		add(entry.Insight)
	}

	// Pattern pass: each rule contributes at most one insight.
	if bloodPressureRe.MatchString(text) {
		add(models.Insight{
			Title:       "Blood Pressure",
			Description: "Systolic/Diastolic readings. Normal is ~120/80.",
			Category:    models.CategoryWarning,
		})
	}
	if fahrenheitRe.MatchString(text) || celsiusRe.MatchString(text) {
		add(models.Insight{
			Title:       "Fever Detected",
			Description: "High body temperature detected.",
			Category:    models.CategoryWarning,
		})
	}
	if dosageRe.MatchString(lower) {
		add(models.Insight{
			Title:       "Dosage Instruction",
			Description: "Specific instruction on how many pills to take.",
			Category:    models.CategoryInfo,
		})
	}

	// Backup pass: literal substring search over the code lexicon,
	// skipping descriptions already covered by a curated term.
	caser := cases.Title(language.English)
	matched := 0
	for _, entry := range a.lex.backup {
		if matched >= backupMatchLimit {
			break
		}
		if len(entry.Description) <= minBackupDescLen {
			continue
		}
		desc := strings.ToLower(entry.Description)
		if !strings.Contains(lower, desc) {
			continue
		}
		subsumed := false
		for term := range foundTerms {
			if strings.Contains(desc, term) {
				subsumed = true
				break
			}
		}
		if subsumed {
			continue
		}
		title := fmt.Sprintf("%s (%s)", caser.String(entry.Description), entry.Code)
		if add(models.Insight{
			Title:       title,
			Description: backupDescription,
			Category:    models.CategoryWarning,
		}) {
			foundTerms[desc] = true
			matched++
		}
	}

	a.log.Debug().
		Int("insights", len(insights)).
		Int("backup_hits", matched).
		Msg("Insight extraction completed")

	return insights
}
