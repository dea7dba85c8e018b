// Package classify sends extracted article text to the external semantic
// classifier and parses its structured judgement. The call is the most
// expensive step of the pipeline and must only happen after the keyword gate
// has passed.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// prompt is the fixed instruction template. The wording is load-bearing: it
// pins the response to a JSON object with exactly the fields
// ort/typ/koord/bundesland/illegal and defines the negative cases.
const prompt = `Analysiere den folgenden Nachrichtentext. Gib das Ergebnis als JSON zurück mit den Feldern:
- 'ort': Der Ort, wo der Vorfall stattgefunden hat. Gib ausschließlich den Ortsnamen zurück, ohne Zusätze wie 'in', 'bei' oder 'nahe'.
- 'typ': Einer der Werte: 'Automatenspiel', 'Wetten', 'Online-Spiele'. Je nach dem, was im Text am ehesten zutrifft. Trifft defintiv nichts davon zu, gib den Wert 'Sonstige' zurück.
- 'koord': Falls ermittelbar, ein Objekt mit 'lat' und 'lon' (sonst null). Die Koordinaten müssen unbedingt dem deutschen Ort entsprechen, wo der Vorfall stattgefunden hat.
- 'bundesland': Das deutsche Bundesland des Orts (z. B. 'Nordrhein-Westfalen', 'Bayern'). Falls nicht bestimmbar, null.
- 'illegal': true oder false. Gib 'true' zurück, **wenn es sich eindeutig um illegales Glücksspiel handelt**. Gib 'false' zurück, **wenn es um andere Vorfälle wie Diebstahl, Einbruch, Überfall, Geldwäsche, oder Straftaten im Umfeld legaler Glücksspiele geht.**

Text:
`

// Valid record types. Anything else the classifier invents degrades to
// TypeOther.
const (
	TypeSlotMachines = "Automatenspiel"
	TypeBetting      = "Wetten"
	TypeOnlineGames  = "Online-Spiele"
	TypeOther        = "Sonstige"
)

type Result struct {
	Illegal      bool
	Type         string
	Place        string
	Lat          *float64
	Lon          *float64
	FederalState string
}

type Classifier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxChars   int
}

func New(apiKey, model string, maxChars int) *Classifier {
	return &Classifier{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		maxChars:   maxChars,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the first maxChars characters of text to the classifier and
// parses the judgement. A response that cannot be parsed into a judgement
// with a boolean illegal field yields a non-illegal Result, not an error:
// the pipeline treats it like an ordinary negative outcome. Errors are
// reserved for transport failures.
func (c *Classifier) Classify(ctx context.Context, text string) (*Result, error) {
	runes := []rune(text)
	if len(runes) > c.maxChars {
		text = string(runes[:c.maxChars])
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt + text}},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier HTTP error: %d %s: %s", resp.StatusCode, resp.Status, body)
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode classifier envelope: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return &Result{Type: TypeOther}, nil
	}

	return parseJudgement(envelope.Choices[0].Message.Content), nil
}

// rawJudgement mirrors the content JSON. Loose types absorb the classifier's
// occasional habit of returning numbers as strings or koord as a partial
// object.
type rawJudgement struct {
	Illegal    *bool  `json:"illegal"`
	Ort        string `json:"ort"`
	Typ        string `json:"typ"`
	Bundesland string `json:"bundesland"`
	Koord      *struct {
		Lat any `json:"lat"`
		Lon any `json:"lon"`
	} `json:"koord"`
}

// parseJudgement decodes the message content. Validation is semi-strict: the
// content must be a JSON object carrying a boolean illegal field, while
// malformed nested fields degrade to absent values instead of rejecting the
// whole judgement.
func parseJudgement(content string) *Result {
	content = stripCodeFence(content)

	var raw rawJudgement
	if err := json.Unmarshal([]byte(content), &raw); err != nil || raw.Illegal == nil {
		return &Result{Type: TypeOther}
	}

	result := &Result{
		Illegal:      *raw.Illegal,
		Type:         normalizeType(raw.Typ),
		Place:        strings.TrimSpace(raw.Ort),
		FederalState: strings.TrimSpace(raw.Bundesland),
	}

	if raw.Koord != nil {
		lat, latOK := toFloat(raw.Koord.Lat)
		lon, lonOK := toFloat(raw.Koord.Lon)
		if latOK && lonOK {
			result.Lat = &lat
			result.Lon = &lon
		}
	}

	return result
}

// stripCodeFence removes a markdown code fence the model sometimes wraps the
// JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimSuffix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}

func normalizeType(typ string) string {
	switch strings.TrimSpace(typ) {
	case TypeSlotMachines, TypeBetting, TypeOnlineGames:
		return strings.TrimSpace(typ)
	default:
		return TypeOther
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
