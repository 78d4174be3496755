package policytext

import (
	"errors"
	"testing"
)

func TestAnalyze_Empty(t *testing.T) {
	t.Parallel()
	for _, text := range []string{"", "   \n\t"} {
		if _, err := Analyze(text); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Analyze(%q) err = %v, want ErrEmptyText", text, err)
		}
	}
}

func TestAnalyze_AllMissing(t *testing.T) {
	t.Parallel()
	got, err := Analyze("We are a small shop in Aarhus.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != len(sections) {
		t.Fatalf("got %d suggestions, want %d: %v", len(got), len(sections), got)
	}
	for i, s := range sections {
		if got[i] != s.suggestion {
			t.Errorf("suggestion %d = %q, want %q", i, got[i], s.suggestion)
		}
	}
}

func TestAnalyze_DanishPolicyComplete(t *testing.T) {
	t.Parallel()
	text := `Vi bruger COOKIES. Du har følgende rettigheder. Vores databehandler er
	hostingfirmaet. Opbevaring af data sker i 5 år.`
	got, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 || got[0] != LooksGood {
		t.Errorf("got %v, want only the looks-good note", got)
	}
}

func TestAnalyze_EnglishPartial(t *testing.T) {
	t.Parallel()
	text := "This site uses cookies. Data is stored for 30 days."
	got, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := []string{sections[1].suggestion, sections[2].suggestion}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("suggestion %d = %q, want %q", i, got[i], want[i])
		}
	}
}
