package pipeline

import "testing"

func TestKeywordGateSubstring(t *testing.T) {
	gate := NewKeywordGate([]string{"glücksspiel", "spielhalle", "casino"}, false)

	tests := []struct {
		name    string
		title   string
		body    string
		want    string
		matched bool
	}{
		{"in title", "Razzia in Spielhalle", "Beamte durchsuchten Räume.", "spielhalle", true},
		{"in body", "Durchsuchung", "Es wurde illegales Glücksspiel festgestellt.", "glücksspiel", true},
		{"case insensitive", "CASINO geschlossen", "", "casino", true},
		{"inside compound word", "Spielhallenbetreiber verurteilt", "", "spielhalle", true},
		{"first keyword wins", "Glücksspiel im Casino", "", "glücksspiel", true},
		{"no match", "Verkehrsunfall", "Zwei Verletzte auf der A2.", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := gate.Match(tt.title, tt.body)
			if matched != tt.matched || got != tt.want {
				t.Errorf("Match() = (%q, %v), want (%q, %v)", got, matched, tt.want, tt.matched)
			}
		})
	}
}

func TestKeywordGateWholeWord(t *testing.T) {
	gate := NewKeywordGate([]string{"spielhalle", "wette"}, true)

	tests := []struct {
		name    string
		body    string
		want    string
		matched bool
	}{
		{"exact word", "Die Spielhalle wurde durchsucht.", "spielhalle", true},
		{"word at end", "Durchsuchung einer Spielhalle", "spielhalle", true},
		{"compound word rejected", "Der Spielhallenbetreiber wurde verurteilt.", "", false},
		{"punctuation boundary", "Razzia: Spielhalle, Wettbüro und Kiosk.", "spielhalle", true},
		{"substring rejected", "Die Wetterlage war ruhig.", "", false},
		{"second occurrence matches", "Spielhallenaufsicht prüfte die Spielhalle.", "spielhalle", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := gate.Match("", tt.body)
			if matched != tt.matched || got != tt.want {
				t.Errorf("Match() = (%q, %v), want (%q, %v)", got, matched, tt.want, tt.matched)
			}
		})
	}
}

func TestKeywordGateEmptyKeywords(t *testing.T) {
	gate := NewKeywordGate([]string{" ", ""}, false)
	if _, matched := gate.Match("Spielhalle", "alles"); matched {
		t.Error("expected no match with empty keyword list")
	}
}
