package analysis

import (
	"strings"

	"meditranslate/pkg/models"
)

// classRule pairs a document type with its indicator keywords.
type classRule struct {
	docType  models.DocumentType
	keywords []string
}

// classRules are evaluated top to bottom; the first rule with any
// case-insensitive substring hit wins. The order is the deliberate
// tie-break for documents matching several categories.
var classRules = []classRule{
	{models.DocumentTypePrescription, []string{"rx", "prescription", "pharmacy", "take", "daily", "tablet"}},
	{models.DocumentTypeLabReport, []string{"lab", "metabolic", "count", "positive", "negative", "range", "result"}},
	{models.DocumentTypeDischarge, []string{"discharge", "summary", "admitted", "hospital", "instructions"}},
	{models.DocumentTypeClinicalNote, []string{"diagnosis", "history", "assessment", "plan"}},
}

// Classify determines the document category from its recognized text.
func (a *Analyzer) Classify(text string) models.DocumentType {
	lower := strings.ToLower(text)
	for _, rule := range classRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.docType
			}
		}
	}
	return models.DocumentTypeGeneral
}
