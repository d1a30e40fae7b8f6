package ocr

import (
	"context"
	"errors"
	"testing"
)

func TestTesseractRejectsPDFInput(t *testing.T) {
	engine := NewTesseractEngine()
	defer engine.Close()

	_, err := engine.Recognize(context.Background(), Input{
		Data: []byte("%PDF-1.4\nfake pdf body"),
	})
	if !errors.Is(err, ErrUnsupportedInput) {
		t.Errorf("Recognize(pdf) error = %v, want ErrUnsupportedInput", err)
	}
}

func TestTesseractRejectsEmptyInput(t *testing.T) {
	engine := NewTesseractEngine()
	defer engine.Close()

	_, err := engine.Recognize(context.Background(), Input{})
	if !errors.Is(err, ErrUnsupportedInput) {
		t.Errorf("Recognize(empty) error = %v, want ErrUnsupportedInput", err)
	}
}

func TestTesseractCanceledContext(t *testing.T) {
	engine := NewTesseractEngine()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Recognize(ctx, Input{Data: []byte("\x89PNG fake")})
	if !errors.Is(err, ErrContextCanceled) {
		t.Errorf("Recognize(canceled) error = %v, want ErrContextCanceled", err)
	}
}

func TestTesseractName(t *testing.T) {
	if got := NewTesseractEngine().Name(); got != "tesseract" {
		t.Errorf("Name() = %q, want %q", got, "tesseract")
	}
}
