package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

const verifyPrompt = `You are an agricultural verification assistant for the EcoFarming platform.

Mission Title: %q
Mission Description: %q

Analyze the attached image and decide whether it shows genuine farming activity that matches the mission.
Check that the image shows real agricultural work, that the activity matches the description, that it is
clear and not fake, and that it shows sustainable practice.

Respond ONLY with a JSON object in this exact format:
{"verified": true or false, "confidence": 0-100, "reason": "why approved or rejected, at most 50 words"}

Be strict but fair. Approve only if the image clearly shows the required activity.`

const generatePrompt = `You are an expert agricultural advisor for the EcoFarming platform.
Generate one personalised sustainability mission for a farmer.

Crop: %s
Current stage: %s
Location: %s
Weather: %s
%s
The task must suit the crop stage, prioritise weather-appropriate work and be eco-friendly.

Respond ONLY with a JSON object in this exact format:
{"title": "short actionable title", "task": "one sentence", "description": "steps and why it helps",
 "verification": "what photo proves completion", "category": "Soil Health|Water Conservation|Pest Management|Crop Practices|Climate Resilience",
 "difficulty": "Easy|Medium|Hard", "points": 20-60}`

// Gemini implements Verifier and Generator on the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	fetch  Fetcher
}

// NewGemini creates a client for model. httpOpts may redirect the API, e.g. in tests.
func NewGemini(ctx context.Context, apiKey, model string, fetch Fetcher, httpOpts *genai.HTTPOptions) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if httpOpts != nil {
		cfg.HTTPOptions = *httpOpts
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model, fetch: fetch}, nil
}

func (g *Gemini) generate(ctx context.Context, parts ...*genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

func (g *Gemini) Verify(ctx context.Context, req VerifyRequest) (*Verdict, error) {
	img, err := g.fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx,
		genai.NewPartFromText(fmt.Sprintf(verifyPrompt, req.Title, req.Description)),
		genai.NewPartFromBytes(img, "image/jpeg"),
	)
	if err != nil {
		return nil, err
	}
	return parseVerdict(text)
}

func (g *Gemini) Generate(ctx context.Context, req GenerateRequest) (*models.MissionDraft, error) {
	trigger := ""
	if req.Trigger != "" {
		trigger = "Weather alert: " + req.Trigger + "\n"
	}
	prompt := fmt.Sprintf(generatePrompt,
		req.Crop, orUnknown(req.Stage), orUnknown(req.Location), orUnknown(req.Weather), trigger)
	text, err := g.generate(ctx, genai.NewPartFromText(prompt))
	if err != nil {
		return nil, err
	}
	return parseDraft(text)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

var (
	_ Verifier  = (*Gemini)(nil)
	_ Generator = (*Gemini)(nil)
)
