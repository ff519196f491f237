// Package ai talks to the generative vision model that judges proof photos and drafts
// missions for crops without a pipeline.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

// VerifyRequest is what the verifier sees of a submission.
type VerifyRequest struct {
	ImageURL    string
	Title       string
	Description string
}

// Verdict is the verifier's judgement. Confidence is 0-100.
type Verdict struct {
	Approved   bool    `json:"approved"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*Verdict, error)
}

// GenerateRequest is the farmer context for a generated mission.
type GenerateRequest struct {
	Crop     string
	Stage    string
	Location string
	Weather  string
	Trigger  string
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*models.MissionDraft, error)
}

// ErrMalformedResponse marks model output that could not be parsed.
var ErrMalformedResponse = errors.New("malformed model response")

// Fetcher downloads a proof image.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// HTTPFetcher returns a Fetcher using client, refusing bodies over maxBytes.
func HTTPFetcher(client *http.Client, maxBytes int64) Fetcher {
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid image url: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if int64(len(data)) > maxBytes {
			return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
		}
		return data, nil
	}
}

// extractJSON strips code fences and any prose around the first JSON object.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(text, 80))
	}
	return text[start : end+1], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type verdictPayload struct {
	Verified   *bool   `json:"verified"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const defaultConfidence = 80

func parseVerdict(text string) (*Verdict, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var p verdictPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if p.Verified == nil || strings.TrimSpace(p.Reason) == "" {
		return nil, fmt.Errorf("%w: verdict needs verified and reason", ErrMalformedResponse)
	}
	conf := p.Confidence
	if conf <= 0 {
		conf = defaultConfidence
	}
	return &Verdict{Approved: *p.Verified, Reason: p.Reason, Confidence: min(conf, 100)}, nil
}

type draftPayload struct {
	Title        string `json:"title"`
	Task         string `json:"task"`
	Description  string `json:"description"`
	Verification string `json:"verification"`
	Category     string `json:"category"`
	Difficulty   string `json:"difficulty"`
	Points       int    `json:"points"`
}

func parseDraft(text string) (*models.MissionDraft, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var p draftPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = strings.TrimSpace(p.Task)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: mission has no title", ErrMalformedResponse)
	}
	return &models.MissionDraft{
		Title:            title,
		Task:             p.Task,
		Description:      p.Description,
		VerificationText: p.Verification,
		Category:         p.Category,
		Difficulty:       p.Difficulty,
		Points:           max(p.Points, 0),
	}, nil
}

type template struct {
	title, description, category string
}

var templates = []template{
	{"Mulching Around %s", "Prepare organic mulch and spread a 2-3 inch layer around the plants, keeping it away from the stem. Retains moisture and prevents weeds.", "Water Conservation"},
	{"Check %s for Pests", "Inspect under the leaves, look for discoloration and remove visible pests. Early detection prevents crop loss.", "Pest Management"},
	{"Soil Moisture Check for %s", "Dig 2 inches deep and check whether the soil sticks to your hand. Water only if dry to prevent root rot.", "Soil Health"},
	{"Prepare Bio-Pesticide for %s", "Mix neem oil with water, add a drop of soap and spray on the leaves. Natural protection against insects.", "Crop Practices"},
}

// Template returns one of a fixed set of missions for crop. seed picks the template so
// successive missions vary.
func Template(crop string, seed int) models.MissionDraft {
	h := fnv.New32a()
	_, _ = h.Write([]byte(models.CropKey(crop)))
	i := (int(h.Sum32()%uint32(len(templates))) + max(seed, 0)) % len(templates)
	t := templates[i]
	return models.MissionDraft{
		Title:            fmt.Sprintf(t.title, crop),
		Description:      t.description,
		VerificationText: "Take a photo of the activity.",
		Category:         t.category,
		Difficulty:       "Easy",
	}
}
