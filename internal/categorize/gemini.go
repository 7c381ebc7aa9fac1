package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiCategorizer classifies transactions with a Gemini model. The
// taxonomy is a closed list from configuration; the model is instructed to
// output strict JSON and anything else fails the call (and so falls back
// upstream).
type GeminiCategorizer struct {
	client     *genai.Client
	model      string
	categories []string
}

func NewGeminiCategorizer(ctx context.Context, model string, categories []string) (*GeminiCategorizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiCategorizer: create genai client: %w", err)
	}
	return &GeminiCategorizer{client: client, model: model, categories: categories}, nil
}

func (g *GeminiCategorizer) Categorize(ctx context.Context, req Request) (Result, error) {
	prompt := g.buildPrompt(req)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Result{}, &CategorizationError{Description: req.Description, Err: err}
	}

	rawText := resp.Text()
	if rawText == "" {
		return Result{}, &CategorizationError{Description: req.Description, Err: fmt.Errorf("empty response from model")}
	}

	var parsed struct {
		Category string `json:"category"`
		Summary  string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &parsed); err != nil {
		return Result{}, &CategorizationError{Description: req.Description, Err: fmt.Errorf("unmarshal JSON: %w", err)}
	}
	if !g.validCategory(parsed.Category) {
		return Result{}, &CategorizationError{Description: req.Description, Err: fmt.Errorf("model returned category %q outside the taxonomy", parsed.Category)}
	}
	return Result{Category: parsed.Category, Summary: parsed.Summary}, nil
}

func (g *GeminiCategorizer) buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a personal-finance transaction classifier.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Classify the transaction below into exactly one category.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no extra text).\n")
	b.WriteString("- Output a single JSON object with fields:\n")
	b.WriteString("  - \"category\": string, EXACTLY one of the categories listed below\n")
	b.WriteString("  - \"summary\": string, a short cleaned-up merchant name\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range g.categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Transaction:\n")
	fmt.Fprintf(&b, "- account: %s\n", req.Account)
	fmt.Fprintf(&b, "- date: %s\n", req.Date)
	fmt.Fprintf(&b, "- amount: %s (positive = money out)\n", req.Amount.StringFixed(2))
	fmt.Fprintf(&b, "- description: %s\n\n", req.Description)

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

func (g *GeminiCategorizer) validCategory(category string) bool {
	if len(g.categories) == 0 {
		return category != ""
	}
	for _, c := range g.categories {
		if strings.EqualFold(strings.TrimSpace(category), c) {
			return true
		}
	}
	return false
}

// cleanModelJSON strips Markdown fences and surrounding junk when the
// model ignores the formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
