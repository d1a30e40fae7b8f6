package models

import "time"

// DocumentType is the detected category of a scanned medical document.
type DocumentType string

const (
	DocumentTypePrescription DocumentType = "Prescription / Medication List"
	DocumentTypeLabReport    DocumentType = "Laboratory Report"
	DocumentTypeDischarge    DocumentType = "Discharge Summary"
	DocumentTypeClinicalNote DocumentType = "Clinical Note"
	DocumentTypeGeneral      DocumentType = "General Medical Document"
)

func (d DocumentType) String() string {
	return string(d)
}

// InsightCategory describes the severity/kind of a detected insight.
type InsightCategory string

const (
	CategoryInfo    InsightCategory = "info"
	CategoryWarning InsightCategory = "warning"
	CategoryDrug    InsightCategory = "drug"
)

// Insight is a surfaced explanation card for a term detected in a document.
// Within a single result set no two insights share a case-insensitive title.
type Insight struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    InsightCategory `json:"category"`

	// Filled by the pipeline when a target language is requested
	TranslatedTitle       string `json:"translated_title,omitempty"`
	TranslatedDescription string `json:"translated_description,omitempty"`
}

// ScanRequest describes one document submission to the pipeline.
type ScanRequest struct {
	ImagePath      string // Path to the image or PDF file
	TargetLanguage string // Target language name (e.g. "Spanish", "Hindi")
	HighContrast   bool   // Use binary thresholding instead of adaptive equalization
}

// ScanResult is the composite outcome of one pipeline run.
type ScanResult struct {
	RunID              string        // Correlation ID for the run
	RawText            string        // Text as recognized from the document
	TranslatedDocument string        // Full document translated to the target language
	DocumentType       DocumentType  // Detected document category
	Insights           []Insight     // Detected terms, title-deduplicated, discovery order
	TargetLanguage     string        // Language the run translated into
	SkewAngle          float64       // Skew correction applied during normalization, in degrees
	OCRConfidence      float32       // Average recognition confidence (0 when the engine reports none)
	ProcessedAt        time.Time     // Completion timestamp
	Duration           time.Duration // Wall time of the full run
}

// ExplanationRequest asks the explanation gateway for a patient-friendly
// description of a term. Transient; never persisted.
type ExplanationRequest struct {
	Term            string // The term the user selected
	LocalDefinition string // Definition from the lexicon, if any
	DocumentContext string // Recognized document text, truncated by the gateway
	TargetLanguage  string // Language for the localized half of the answer
}
