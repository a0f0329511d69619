// Package assistant runs the voice assistant dialogue and turns free text
// into names and destinations.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// Context tells the extractor what the text is expected to contain.
type Context string

const (
	ContextName        Context = "NAME"
	ContextDestination Context = "DESTINATION"
	ContextGeneral     Context = "GENERAL"
)

// Unknown is what the model answers when it finds nothing.
const Unknown = "UNKNOWN"

// ParseContext maps a request value onto a Context. Empty means GENERAL.
func ParseContext(s string) (Context, error) {
	switch c := Context(strings.ToUpper(strings.TrimSpace(s))); c {
	case ContextName, ContextDestination, ContextGeneral:
		return c, nil
	case "":
		return ContextGeneral, nil
	default:
		return "", fmt.Errorf("unknown context %q", s)
	}
}

// Extractor pulls the relevant part out of a transcript. On failure it still
// returns the raw text alongside the error, so callers can carry on.
type Extractor interface {
	Extract(ctx context.Context, text string, c Context) (string, error)
}

// Passthrough returns the text unchanged. Used when no model is configured.
type Passthrough struct{}

func (Passthrough) Extract(_ context.Context, text string, _ Context) (string, error) {
	return strings.TrimSpace(text), nil
}

// generator is the part of *genai.Models the extractor calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIExtractor asks a Gemini model to do the extraction.
type GenAIExtractor struct {
	gen   generator
	model string
}

// NewGenAIExtractor connects to the Gemini API with the given key.
func NewGenAIExtractor(ctx context.Context, apiKey, model string) (*GenAIExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIExtractor{gen: client.Models, model: model}, nil
}

// NewExtractor picks the Gemini extractor when a key is set and falls back to
// Passthrough otherwise.
func NewExtractor(ctx context.Context, apiKey, model string) Extractor {
	if apiKey == "" {
		logrus.Warn("GEMINI_API_KEY is not set, voice commands use the raw transcript")
		return Passthrough{}
	}
	ex, err := NewGenAIExtractor(ctx, apiKey, model)
	if err != nil {
		logrus.WithError(err).Error("Failed to set up Gemini, voice commands use the raw transcript")
		return Passthrough{}
	}
	return ex
}

func (e *GenAIExtractor) Extract(ctx context.Context, text string, c Context) (string, error) {
	resp, err := e.gen.GenerateContent(ctx, e.model, genai.Text(prompt(text, c)), nil)
	if err != nil {
		return text, fmt.Errorf("generate content: %w", err)
	}
	return cleanup(resp.Text(), c), nil
}

func prompt(text string, c Context) string {
	switch c {
	case ContextName:
		return fmt.Sprintf(`Extract the person's name from this text: %q. Return ONLY the name as a single string. `+
			`Do not include punctuation, "The name is", or any other text. If no name is found, return "UNKNOWN". `+
			`Example: "My name is Likith" -> "Likith".`, text)
	case ContextDestination:
		return fmt.Sprintf(`Extract the destination from this text: %q. Return ONLY the destination name. `+
			`If no destination is found, return "UNKNOWN". Example: "Take me to the cafeteria" -> "Cafeteria".`, text)
	default:
		return fmt.Sprintf(`Analyze this text: %q. Return a JSON object with `+
			`{ intent: "navigate" | "identify" | "unknown", entity: string | null }.`, text)
	}
}

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
	quotesDots = regexp.MustCompile(`["'.]`)
)

func cleanup(output string, c Context) string {
	output = strings.TrimSpace(output)
	output = fenceOpen.ReplaceAllString(output, "")
	output = fenceClose.ReplaceAllString(output, "")
	if c == ContextName || c == ContextDestination {
		output = quotesDots.ReplaceAllString(output, "")
	}
	return strings.TrimSpace(output)
}

// Intent is the structured answer for GENERAL text.
type Intent struct {
	Intent string  `json:"intent"`
	Entity *string `json:"entity"`
}

// ParseIntent decodes a GENERAL answer. Anything that is not the expected
// JSON object is reported as an unknown intent.
func ParseIntent(raw string) Intent {
	var in Intent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return Intent{Intent: "unknown"}
	}
	switch in.Intent {
	case "navigate", "identify":
	default:
		in.Intent = "unknown"
	}
	if in.Entity != nil && strings.TrimSpace(*in.Entity) == "" {
		in.Entity = nil
	}
	return in
}

// Refine runs an extraction and falls back to the raw transcript when the
// model fails or finds nothing.
func Refine(ctx context.Context, ex Extractor, text string, c Context) string {
	raw := strings.TrimSpace(text)
	out, err := ex.Extract(ctx, raw, c)
	if err != nil {
		logrus.WithError(err).WithField("context", c).Warn("Intent extraction failed, using raw transcript")
		return raw
	}
	out = strings.TrimSpace(out)
	if out == "" || strings.EqualFold(out, Unknown) {
		return raw
	}
	return out
}
