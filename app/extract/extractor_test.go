package extract

import (
	"strings"
	"testing"
)

const articleHTML = `
<html><body>
<div class="article-text">
  <p>Die Polizei durchsuchte am Dienstag eine Spielhalle in der Innenstadt.</p>
  <p>Dabei wurden mehrere Automaten sichergestellt.</p>
  <p>Rückfragen bitte an die Pressestelle.</p>
  <p>Diese Zeile darf nicht mehr erscheinen.</p>
</div>
<div class="sidebar"><p>Themen des Tages</p></div>
</body></html>`

func TestRun_FirstStrategyWins(t *testing.T) {
	extractor, err := New([]Strategy{
		{Kind: StrategyContainer, Selector: "div.article-text"},
		{Kind: StrategyParagraphs},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	paragraphs, err := extractor.Run(articleHTML)
	if err != nil {
		t.Fatal(err)
	}

	// The sidebar paragraph must not appear: the container strategy matched,
	// so the catch-all strategy was never consulted.
	for _, p := range paragraphs {
		if strings.Contains(p, "Themen des Tages") {
			t.Errorf("Catch-all strategy was consulted although container strategy succeeded")
		}
	}
}

func TestRun_BoilerplateCutoff(t *testing.T) {
	extractor, err := New([]Strategy{{Kind: StrategyContainer, Selector: "div.article-text"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	paragraphs, err := extractor.Run(articleHTML)
	if err != nil {
		t.Fatal(err)
	}

	if len(paragraphs) != 2 {
		t.Fatalf("Expected 2 paragraphs before cutoff, got %d: %v", len(paragraphs), paragraphs)
	}
	if !strings.Contains(paragraphs[0], "Spielhalle") {
		t.Errorf("First paragraph wrong: %q", paragraphs[0])
	}
	for _, p := range paragraphs {
		if strings.Contains(p, "Rückfragen") || strings.Contains(p, "nicht mehr erscheinen") {
			t.Errorf("Boilerplate line survived cutoff: %q", p)
		}
	}
}

func TestRun_CutoffIsCaseInsensitivePrefix(t *testing.T) {
	html := `<div class="a"><p>Bericht über die Durchsuchung.</p><p>WEITERE MELDUNGEN aus der Region</p></div>`
	extractor, err := New([]Strategy{{Kind: StrategyContainer, Selector: "div.a"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	paragraphs, err := extractor.Run(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(paragraphs) != 1 {
		t.Errorf("Expected cutoff at uppercase stop line, got %v", paragraphs)
	}
}

func TestRun_FallbackToLaterStrategy(t *testing.T) {
	html := `<html><body><article><p>Nur hier steht Text.</p></article></body></html>`
	extractor, err := New([]Strategy{
		{Kind: StrategyContainer, Selector: "div.missing"},
		{Kind: StrategySelector, Selector: "article p"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	paragraphs, err := extractor.Run(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(paragraphs) != 1 || paragraphs[0] != "Nur hier steht Text." {
		t.Errorf("Expected fallback strategy result, got %v", paragraphs)
	}
}

func TestRun_ContentMissing(t *testing.T) {
	extractor, err := New([]Strategy{{Kind: StrategyParagraphs}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = extractor.Run(`<html><body><div>kein Absatz</div></body></html>`)
	if err != ErrContentMissing {
		t.Errorf("Expected ErrContentMissing, got %v", err)
	}
}

func TestRun_Deterministic(t *testing.T) {
	extractor, err := New([]Strategy{
		{Kind: StrategyContainer, Selector: "div.article-text"},
		{Kind: StrategyParagraphs},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	first, err := extractor.Run(articleHTML)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		again, err := extractor.Run(articleHTML)
		if err != nil {
			t.Fatal(err)
		}
		if len(again) != len(first) {
			t.Fatalf("Run %d produced %d paragraphs, first run produced %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("Run %d paragraph %d differs: %q vs %q", i, j, again[j], first[j])
			}
		}
	}
}

func TestRun_ContainerUsesFirstMatchOnly(t *testing.T) {
	html := `
<div class="text"><p>Erster Container.</p></div>
<div class="text"><p>Zweiter Container.</p></div>`
	extractor, err := New([]Strategy{{Kind: StrategyContainer, Selector: "div.text"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	paragraphs, err := extractor.Run(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(paragraphs) != 1 || paragraphs[0] != "Erster Container." {
		t.Errorf("Expected only the first container's paragraphs, got %v", paragraphs)
	}
}

func TestRun_MetaDescriptionFallback(t *testing.T) {
	// A teaser page whose body is withheld: the text lives only in the
	// description meta tag.
	paywalledHTML := `
<html><head>
<meta name="description" content="Bei einer Razzia in einer Spielhalle in Kiel stellten Beamte mehrere illegale Automaten sicher.">
</head><body>
<div class="article__detail__content"></div>
<div class="paywall-banner">Jetzt weiterlesen mit einem Abo.</div>
</body></html>`

	extractor, err := New([]Strategy{
		{Kind: StrategySelector, Selector: "div.article__detail__content p"},
		{Kind: StrategyMetaDescription},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	paragraphs, err := extractor.Run(paywalledHTML)
	if err != nil {
		t.Fatalf("Expected meta description fallback, got error: %v", err)
	}
	if len(paragraphs) != 1 || !strings.Contains(paragraphs[0], "Razzia in einer Spielhalle in Kiel") {
		t.Errorf("Expected meta description as the article text, got %v", paragraphs)
	}
}

func TestRun_MetaDescriptionMissing(t *testing.T) {
	extractor, err := New([]Strategy{{Kind: StrategyMetaDescription}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := extractor.Run(`<html><body><div>kein Inhalt</div></body></html>`); err != ErrContentMissing {
		t.Errorf("Expected ErrContentMissing without a description tag, got %v", err)
	}
}

func TestNew_RejectsUnknownStrategy(t *testing.T) {
	if _, err := New([]Strategy{{Kind: "xpath"}}, nil); err == nil {
		t.Error("Expected error for unknown strategy kind")
	}
}

func TestNew_RequiresSelector(t *testing.T) {
	if _, err := New([]Strategy{{Kind: StrategyContainer}}, nil); err == nil {
		t.Error("Expected error for container strategy without selector")
	}
}

func TestSummary_PicksFirstSubstantialParagraph(t *testing.T) {
	long := strings.Repeat("Die Beamten stellten illegale Spielautomaten sicher. ", 3)
	paragraphs := []string{
		"14.08.2025",
		"Kurzer Satz.",
		long,
	}

	summary := Summary(paragraphs, "")
	if !strings.HasPrefix(summary, "Die Beamten") {
		t.Errorf("Expected summary from the long paragraph, got %q", summary)
	}
	if len([]rune(summary)) > summaryMaxRunes+3 {
		t.Errorf("Summary exceeds maximum length: %d runes", len([]rune(summary)))
	}
}

func TestSummary_TruncatesAt300Runes(t *testing.T) {
	long := strings.Repeat("ä", 400)
	summary := Summary([]string{long}, "")
	if len([]rune(summary)) != summaryMaxRunes+3 {
		t.Errorf("Expected 300 runes plus ellipsis, got %d", len([]rune(summary)))
	}
	if !strings.HasSuffix(summary, "...") {
		t.Errorf("Expected ellipsis suffix on truncated summary")
	}
}

func TestSummary_MetaDescriptionFallback(t *testing.T) {
	summary := Summary([]string{"Kurz."}, "Beschreibung aus dem Meta-Tag")
	if summary != "Beschreibung aus dem Meta-Tag" {
		t.Errorf("Expected meta description fallback, got %q", summary)
	}
}

func TestSummary_EmptyWhenNothingQualifies(t *testing.T) {
	if s := Summary([]string{"Kurz."}, ""); s != "" {
		t.Errorf("Expected empty summary, got %q", s)
	}
}

func TestStripHTML(t *testing.T) {
	in := `<b>Razzia</b> in &quot;Casino&quot;<script>alert(1)</script>`
	out := StripHTML(in)
	if strings.Contains(out, "<") || strings.Contains(out, "alert") {
		t.Errorf("Markup survived stripping: %q", out)
	}
	if !strings.Contains(out, `"Casino"`) {
		t.Errorf("Entities not unescaped: %q", out)
	}
}
