package analysis

import (
	"testing"

	"meditranslate/pkg/models"
)

func TestClassify(t *testing.T) {
	a := NewAnalyzer(NewLexicon(nil, nil))

	tests := []struct {
		name string
		text string
		want models.DocumentType
	}{
		{"prescription keyword", "Rx: Amoxicillin 500mg", models.DocumentTypePrescription},
		{"pharmacy keyword", "Pick up at the PHARMACY counter", models.DocumentTypePrescription},
		{"lab keyword", "Comprehensive metabolic panel results attached", models.DocumentTypeLabReport},
		{"negative keyword", "Culture came back negative", models.DocumentTypeLabReport},
		{"discharge keyword", "Patient was admitted on Monday", models.DocumentTypeDischarge},
		{"clinical keyword", "Assessment: stable. Plan: follow up.", models.DocumentTypeClinicalNote},
		{"no keywords", "The quick brown fox", models.DocumentTypeGeneral},
		{"empty text", "", models.DocumentTypeGeneral},
		{"case insensitive", "DIAGNOSIS CONFIRMED", models.DocumentTypeClinicalNote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Classify(tt.text); got != tt.want {
				t.Fatalf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	a := NewAnalyzer(NewLexicon(nil, nil))

	// Contains prescription, lab and discharge indicators at once; the
	// prescription rule is checked first and must win.
	text := "Prescription issued at discharge, lab results pending"
	if got := a.Classify(text); got != models.DocumentTypePrescription {
		t.Fatalf("Classify = %q, want %q", got, models.DocumentTypePrescription)
	}

	// Lab beats discharge for the same reason.
	text = "Lab report prepared before discharge"
	if got := a.Classify(text); got != models.DocumentTypeLabReport {
		t.Fatalf("Classify = %q, want %q", got, models.DocumentTypeLabReport)
	}
}
