package report

import (
	"strings"
	"testing"
)

func TestExplanationHTML(t *testing.T) {
	markdown := "### Spanish Explanation\n" +
		"No se asuste. La metformina ayuda a controlar el azúcar.\n\n" +
		"---\n\n" +
		"### English Explanation\n" +
		"* **What is it?** A medicine for blood sugar.\n" +
		"* **Advice:** Ask your doctor about meals.\n"

	html, err := ExplanationHTML(markdown)
	if err != nil {
		t.Fatalf("ExplanationHTML: %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<meta charset=\"utf-8\">",
		"<h3",
		"Spanish Explanation",
		"<hr",
		"<li>",
		"<strong>What is it?</strong>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q\n%s", want, html)
		}
	}
}

func TestExplanationHTMLEmptyInput(t *testing.T) {
	html, err := ExplanationHTML("")
	if err != nil {
		t.Fatalf("ExplanationHTML: %v", err)
	}
	if !strings.Contains(html, "<body>") {
		t.Errorf("html shell missing body: %s", html)
	}
}
