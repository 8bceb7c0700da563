package main

import "testing"

func TestParseFootnotesJSON(t *testing.T) {
	footnotes, err := parseFootnotes([]byte(`{"1": "Id. at 12.", "12": "42 U.S.C. § 1983."}`))
	if err != nil {
		t.Fatalf("parseFootnotes() error: %v", err)
	}
	if len(footnotes) != 2 {
		t.Fatalf("footnotes = %d, want 2", len(footnotes))
	}
	if footnotes[12] != "42 U.S.C. § 1983." {
		t.Errorf("footnote 12 = %q", footnotes[12])
	}
}

func TestParseFootnotesPlainText(t *testing.T) {
	footnotes, err := parseFootnotes([]byte("See Smith v. Jones, 347 U.S. 483 (1954).\n"))
	if err != nil {
		t.Fatalf("parseFootnotes() error: %v", err)
	}
	if len(footnotes) != 1 || footnotes[1] == "" {
		t.Errorf("footnotes = %v", footnotes)
	}
}

func TestParseFootnotesErrors(t *testing.T) {
	if _, err := parseFootnotes([]byte("   ")); err == nil {
		t.Error("blank input accepted")
	}
	if _, err := parseFootnotes([]byte(`{"one": "text"}`)); err == nil {
		t.Error("non-numeric footnote key accepted")
	}
	if _, err := parseFootnotes([]byte(`{broken`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}
