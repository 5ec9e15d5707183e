package clause

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/redline/internal/models"
)

func TestSplit_withIntroduction(t *testing.T) {
	text := "This Agreement is made between A and B.\n\n1. Term\nThe term is 12 months.\n\n2. Payment\nPayment is due in 30 days.\n\n3. Termination\nEither party may terminate."
	got := Split(text)
	want := []models.Clause{
		{Title: "Introduction", Text: "This Agreement is made between A and B."},
		{Title: "1. Term", Text: "The term is 12 months."},
		{Title: "2. Payment", Text: "Payment is due in 30 days."},
		{Title: "3. Termination", Text: "Either party may terminate."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestSplit_noLeadingText(t *testing.T) {
	text := "1. Term\nThis Agreement lasts 12 months.\n\n2. Payment\nPayment is due in 30 days."
	got := Split(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 clauses, got %d: %+v", len(got), got)
	}
	if got[0].Title != "1. Term" || got[0].Text != "This Agreement lasts 12 months." {
		t.Errorf("clause 0: %+v", got[0])
	}
	if got[1].Title != "2. Payment" || got[1].Text != "Payment is due in 30 days." {
		t.Errorf("clause 1: %+v", got[1])
	}
}

func TestSplit_headingCount(t *testing.T) {
	for n := 1; n <= 6; n++ {
		var b strings.Builder
		for i := 1; i <= n; i++ {
			b.WriteString(strings.Repeat("x", i))
			b.WriteString("\n\n")
			b.WriteString(string(rune('0' + i)))
			b.WriteString(". Section\nbody text\n\n")
		}
		withIntro := "Preamble text.\n\n" + b.String()
		if got := len(Split(withIntro)); got != n+1 {
			t.Errorf("n=%d with intro: got %d clauses", n, got)
		}
		withoutIntro := strings.TrimPrefix(b.String(), "x\n\n")
		if got := len(Split(withoutIntro)); got != n {
			t.Errorf("n=%d without intro: got %d clauses", n, got)
		}
	}
}

func TestSplit_emptyHeadingDropped(t *testing.T) {
	text := "1. Definitions\n2. Term\nThe term is one year."
	got := Split(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 clause, got %+v", got)
	}
	if got[0].Title != "2. Term" {
		t.Errorf("title: got %q", got[0].Title)
	}
}

func TestSplit_whitespaceIntroductionDropped(t *testing.T) {
	got := Split("  \n\n\t\n1. Term\nbody")
	if len(got) != 1 || got[0].Title != "1. Term" {
		t.Errorf("got %+v", got)
	}
}

func TestSplit_noHeadings(t *testing.T) {
	got := Split("  Plain text without any numbered heading.  ")
	want := []models.Clause{{Title: "Introduction", Text: "Plain text without any numbered heading."}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v", got)
	}
}

func TestSplit_empty(t *testing.T) {
	if got := Split(""); len(got) != 0 {
		t.Errorf("expected no clauses, got %+v", got)
	}
	if got := Split("\n\n  \n"); len(got) != 0 {
		t.Errorf("expected no clauses, got %+v", got)
	}
}

func TestSplit_nonHeadingNumberedLines(t *testing.T) {
	// Lowercase after the number, no space, and mid-line numbers are not headings.
	text := "1. Term\n2.Payment is monthly.\n3. payment is due.\nSee clause 4. Notices for details."
	got := Split(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 clause, got %+v", got)
	}
	if !strings.Contains(got[0].Text, "3. payment is due.") {
		t.Errorf("body lost content: %q", got[0].Text)
	}
}

func TestSplit_crlf(t *testing.T) {
	text := "Intro\r\n\r\n1. Term\r\nOne year.\r\n\r\n2. Payment\r\nNet 30."
	got := Split(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 clauses, got %+v", got)
	}
	if got[2].Title != "2. Payment" || got[2].Text != "Net 30." {
		t.Errorf("clause 2: %+v", got[2])
	}
}

func TestSplit_multiDigitHeading(t *testing.T) {
	got := Split("12. Governing Law\nThe laws of Delaware apply.")
	if len(got) != 1 || got[0].Title != "12. Governing Law" {
		t.Errorf("got %+v", got)
	}
}

func TestSplit_resegmentTitle(t *testing.T) {
	text := "Preamble.\n\n1. Term\nThe term is 12 months.\n\n2. Payment\nNet 30."
	for _, c := range Split(text) {
		again := Split(c.Title + "\n" + c.Text)
		if len(again) == 0 {
			t.Fatalf("re-segmenting %q produced no clauses", c.Title)
		}
		if strings.TrimSpace(again[0].Title) != strings.TrimSpace(c.Title) {
			t.Errorf("re-segmented title: got %q, want %q", again[0].Title, c.Title)
		}
	}
}

func TestTitles(t *testing.T) {
	clauses := []models.Clause{{Title: "Introduction"}, {Title: "1. Term"}}
	if got := Titles(clauses); !reflect.DeepEqual(got, []string{"Introduction", "1. Term"}) {
		t.Errorf("got %v", got)
	}
}
