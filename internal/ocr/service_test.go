package ocr

import "testing"

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", []byte("%PDF-1.4\nminimal"), MimePDF},
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), MimePNG},
		{"jpeg", []byte("\xff\xd8\xff\xe0rest of jpeg"), MimeJPEG},
		{"tiff little endian", []byte("II\x2a\x00rest"), MimeTIFF},
		{"tiff big endian", []byte("MM\x00\x2arest"), MimeTIFF},
		{"plain text", []byte("just some text"), "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMimeType(tt.data); got != tt.want {
				t.Errorf("DetectMimeType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLanguageHint(t *testing.T) {
	tests := []struct {
		language string
		want     string
	}{
		{"", ""},
		{"eng", "en"},
		{"spa", "es"},
		{"hin", "hi"},
		{"deu", "de"},
		{"fr", "fr"},
	}

	for _, tt := range tests {
		if got := languageHint(tt.language); got != tt.want {
			t.Errorf("languageHint(%q) = %q, want %q", tt.language, got, tt.want)
		}
	}
}
