package translate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash-exp"

const translateSystemPrompt = "You are a translator for Japanese corporate disclosure filings. " +
	"Translate the user's text to English. " +
	`Respond with a JSON object of the form {"translation": "..."} and nothing else.`

// Gemini translates text through the Gemini API. Failures never surface
// to callers; the input comes back prefixed with "Not translated: ".
type Gemini struct {
	Model string
	log   *slog.Logger
}

var _ Translator = (*Gemini)(nil)

// NewGemini creates a Gemini translator. An empty model selects the
// default. The GEMINI_API_KEY environment variable supplies credentials.
func NewGemini(model string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		Model: model,
		log:   slog.Default().With(slog.String("component", "translate")),
	}
}

func (g *Gemini) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	translated, err := g.request(ctx, text)
	if err != nil {
		g.log.Warn("translation failed, returning passthrough", "error", err)
		return "Not translated: " + text
	}
	return translated
}

func (g *Gemini) request(ctx context.Context, text string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: translateSystemPrompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, genai.Text(text), config)
	if err != nil {
		return "", err
	}
	return parseTranslation(resp.Text())
}

// parseTranslation extracts the translation field from the model's JSON
// payload, repairing the common malformations first.
func parseTranslation(raw string) (string, error) {
	var payload struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		repaired, repairErr := jsonrepair.RepairJSON(raw)
		if repairErr != nil {
			return "", err
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return "", err
		}
	}
	if payload.Translation == "" {
		return "", errEmptyTranslation
	}
	return payload.Translation, nil
}

var errEmptyTranslation = errors.New("model returned no translation")
