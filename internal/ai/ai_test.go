package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict("```json\n{\"verified\": true, \"confidence\": 92, \"reason\": \"Mulch visible\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, &Verdict{Approved: true, Reason: "Mulch visible", Confidence: 92}, v)

	v, err = parseVerdict(`Here you go: {"verified": false, "reason": "Stock photo"}`)
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Equal(t, float64(defaultConfidence), v.Confidence)

	for _, bad := range []string{"", "no json here", `{"confidence": 50, "reason": "x"}`, `{"verified": true}`, `{"verified": "yes"`} {
		_, err := parseVerdict(bad)
		assert.True(t, errors.Is(err, ErrMalformedResponse), "input %q", bad)
	}
}

func TestParseDraft(t *testing.T) {
	d, err := parseDraft(`{"task": "Install drip lines", "description": "Lay lines", "category": "Water Conservation", "points": 40}`)
	require.NoError(t, err)
	assert.Equal(t, "Install drip lines", d.Title)
	assert.Equal(t, 40, d.Points)

	_, err = parseDraft(`{"description": "nothing else"}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestTemplateIsDeterministic(t *testing.T) {
	a := Template("Rice", 0)
	b := Template("rice", 0)
	assert.Equal(t, a.Category, b.Category)
	assert.Contains(t, a.Title, "Rice")
	assert.NotEqual(t, Template("Rice", 0).Title, Template("Rice", 1).Title)
	assert.Equal(t, Template("Rice", 0).Title, Template("Rice", len(templates)).Title)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small.jpg":
			_, _ = w.Write([]byte("abc"))
		case "/big.jpg":
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetch := HTTPFetcher(srv.Client(), 10)
	data, err := fetch(context.Background(), srv.URL+"/small.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = fetch(context.Background(), srv.URL+"/big.jpg")
	assert.Error(t, err)
	_, err = fetch(context.Background(), srv.URL+"/missing.jpg")
	assert.Error(t, err)
}

// fakeGemini answers generateContent calls with a fixed model text and serves proof images.
func fakeGemini(t *testing.T, modelText string) (*httptest.Server, *[]string) {
	var mu sync.Mutex
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("jpeg-bytes"))
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		prompts = append(prompts, string(body))
		mu.Unlock()
		resp := map[string]interface{}{
			"candidates": []interface{}{map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{map[string]interface{}{"text": modelText}},
				},
				"finishReason": "STOP",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func TestGeminiVerify(t *testing.T) {
	srv, prompts := fakeGemini(t, `{"verified": true, "confidence": 88, "reason": "Soil samples visible"}`)
	g, err := NewGemini(context.Background(), "test-key", "gemini-test", HTTPFetcher(srv.Client(), 1<<20),
		&genai.HTTPOptions{BaseURL: srv.URL})
	require.NoError(t, err)

	v, err := g.Verify(context.Background(), VerifyRequest{
		ImageURL:    srv.URL + "/proof.jpg",
		Title:       "Soil Sampling & Testing",
		Description: "Collect soil samples",
	})
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.Equal(t, 88.0, v.Confidence)

	require.Len(t, *prompts, 1)
	assert.Contains(t, (*prompts)[0], "Soil Sampling")
	assert.Contains(t, (*prompts)[0], "image/jpeg")
}

func TestGeminiGenerate(t *testing.T) {
	srv, _ := fakeGemini(t, `{"title": "Harvest rainwater", "description": "Set up barrels", "category": "Water Conservation", "difficulty": "Medium", "points": 45}`)
	g, err := NewGemini(context.Background(), "test-key", "gemini-test", nil, &genai.HTTPOptions{BaseURL: srv.URL})
	require.NoError(t, err)

	d, err := g.Generate(context.Background(), GenerateRequest{Crop: "Rice", Trigger: "RAIN_PREPARATION"})
	require.NoError(t, err)
	assert.Equal(t, "Harvest rainwater", d.Title)
	assert.Equal(t, 45, d.Points)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "m", nil, nil)
	assert.Error(t, err)
}
