package ocr

import (
	"errors"
	"math"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

func fileResponse(pageTexts ...string) *visionpb.AnnotateFileResponse {
	resp := &visionpb.AnnotateFileResponse{}
	for _, text := range pageTexts {
		resp.Responses = append(resp.Responses, &visionpb.AnnotateImageResponse{
			FullTextAnnotation: &visionpb.TextAnnotation{Text: text},
		})
	}
	return resp
}

func TestProcessFileResponseJoinsPages(t *testing.T) {
	engine := NewVisionEngineWithClient(nil)

	result, err := engine.processFileResponse(fileResponse("First page text.", "Second page text."))
	if err != nil {
		t.Fatalf("processFileResponse() error = %v", err)
	}

	if result.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", result.PageCount)
	}
	if !strings.Contains(result.Text, "First page text.") || !strings.Contains(result.Text, "Second page text.") {
		t.Errorf("Text = %q, want both pages present", result.Text)
	}
	if !strings.Contains(result.Text, "--- Page 2 ---") {
		t.Errorf("Text = %q, want page separator", result.Text)
	}
}

func TestProcessFileResponseNoResponses(t *testing.T) {
	engine := NewVisionEngineWithClient(nil)

	_, err := engine.processFileResponse(&visionpb.AnnotateFileResponse{})
	if !errors.Is(err, ErrNoText) {
		t.Errorf("processFileResponse() error = %v, want ErrNoText", err)
	}
}

func TestProcessFileResponseBlankPages(t *testing.T) {
	engine := NewVisionEngineWithClient(nil)

	_, err := engine.processFileResponse(fileResponse("   ", "\n"))
	if !errors.Is(err, ErrNoText) {
		t.Errorf("processFileResponse() error = %v, want ErrNoText", err)
	}
}

func TestProcessFileResponseTooManyPages(t *testing.T) {
	engine := NewVisionEngineWithClient(nil)

	pages := make([]string, MaxPagesSync+1)
	for i := range pages {
		pages[i] = "text"
	}

	_, err := engine.processFileResponse(fileResponse(pages...))
	if !errors.Is(err, ErrTooManyPages) {
		t.Errorf("processFileResponse() error = %v, want ErrTooManyPages", err)
	}
}

func TestProcessFileResponseAveragesConfidence(t *testing.T) {
	engine := NewVisionEngineWithClient(nil)

	resp := fileResponse("some recognized text")
	resp.Responses[0].TextAnnotations = []*visionpb.EntityAnnotation{
		{Confidence: 0.8},
		{Confidence: 0.6},
	}

	result, err := engine.processFileResponse(resp)
	if err != nil {
		t.Fatalf("processFileResponse() error = %v", err)
	}
	if math.Abs(float64(result.Confidence)-0.7) > 1e-6 {
		t.Errorf("Confidence = %v, want 0.7", result.Confidence)
	}
}

func TestImageContext(t *testing.T) {
	if got := imageContext(""); got != nil {
		t.Errorf("imageContext(\"\") = %v, want nil", got)
	}

	got := imageContext("eng")
	if got == nil || len(got.LanguageHints) != 1 || got.LanguageHints[0] != "en" {
		t.Errorf("imageContext(\"eng\") = %v, want hint [en]", got)
	}
}
