package report

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// htmlShell wraps rendered explanation markup in a minimal standalone
// document.
const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>MediTranslate Explanation</title>
<style>
body { font-family: sans-serif; max-width: 42em; margin: 2em auto; padding: 0 1em; line-height: 1.5; }
hr { border: 0; border-top: 1px solid #ccc; }
</style>
</head>
<body>
%s</body>
</html>
`

// ExplanationHTML renders explanation markdown (headings, bold bullet
// leads, a horizontal rule between language halves) into a standalone
// HTML page.
func ExplanationHTML(markdown string) (string, error) {
	const op = "ExplanationHTML"

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", NewReportError(op, fmt.Errorf("%w: %v", ErrRenderFailed, err), "")
	}
	return fmt.Sprintf(htmlShell, buf.String()), nil
}
