// Package vision labels screen frames and turns labels into short
// situational advisories, backed by the Gemini API.
package vision

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the cheap text/vision model used for
	// classification, separate from the live conversation model.
	DefaultModel = "gemini-2.5-flash"

	// UnknownLabel is returned when the model gives no usable answer.
	UnknownLabel = "unknown"

	maxLabelLen = 48
)

const classifyPrompt = "Look at this screenshot and answer with a short lowercase label " +
	"(2-4 words) describing what the person is doing, e.g. " +
	"\"playing a shooter\", \"browsing the web\", \"in a menu\". " +
	"Answer with the label only."

const advisePrompt = "The person on screen is currently: %s. " +
	"Give exactly 3 short coaching tips for this situation, " +
	"one per line, no numbering, each under 10 words."

// fallbackAdvisories covers advise failures so the session always has
// something to show when the context changes.
var fallbackAdvisories = []string{
	"Stay aware of your surroundings",
	"Keep your goal in mind",
	"Take a breath before the next move",
}

// Classifier labels a JPEG frame and expands a label into advisories.
type Classifier interface {
	Classify(ctx context.Context, jpeg []byte) (string, error)
	Advise(ctx context.Context, label string) ([]string, error)
}

// GeminiClassifier implements Classifier over the Gemini REST API.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, jpeg []byte) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: jpeg}},
			{Text: classifyPrompt},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return NormalizeLabel(resp.Text()), nil
}

func (g *GeminiClassifier) Advise(ctx context.Context, label string) ([]string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: fmt.Sprintf(advisePrompt, label)},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return FallbackAdvisories(), fmt.Errorf("advise: %w", err)
	}
	tips := ParseAdvisories(resp.Text())
	if len(tips) == 0 {
		return FallbackAdvisories(), nil
	}
	return tips, nil
}

// NormalizeLabel collapses a model answer to a single short lowercase
// label, or UnknownLabel when nothing usable came back.
func NormalizeLabel(raw string) string {
	line := raw
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.ToLower(strings.TrimSpace(line))
	line = strings.Trim(line, `"'.`)
	if line == "" {
		return UnknownLabel
	}
	if len(line) > maxLabelLen {
		line = strings.TrimSpace(line[:maxLabelLen])
	}
	return line
}

// ParseAdvisories splits a model answer into up to 3 non-empty lines.
func ParseAdvisories(raw string) []string {
	var tips []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*•0123456789. "))
		if line == "" {
			continue
		}
		tips = append(tips, line)
		if len(tips) == 3 {
			break
		}
	}
	return tips
}

// FallbackAdvisories returns a fresh copy of the built-in tips.
func FallbackAdvisories() []string {
	out := make([]string, len(fallbackAdvisories))
	copy(out, fallbackAdvisories)
	return out
}
