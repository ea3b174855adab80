package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hpungsan/recap/internal/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-3-flash-preview"

// GenAI generates reports with Google's Gemini API.
type GenAI struct {
	apiKey string
	model  string
	logger *zap.Logger
}

// NewGenAI creates a Gemini-backed Generator. The client is created per call,
// so a missing key is reported when summarizing rather than at startup.
func NewGenAI(apiKey, model string, logger *zap.Logger) *GenAI {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenAI{
		apiKey: apiKey,
		model:  model,
		logger: logger,
	}
}

func newGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// Model returns the model name requests are sent to.
func (g *GenAI) Model() string {
	return g.model
}

// Generate sends one structured-output request and parses the reply.
func (g *GenAI) Generate(ctx context.Context, text, instruction string) (*Result, error) {
	if g.apiKey == "" {
		return nil, errors.NewGenerationFailure("API key is not configured", nil)
	}

	client, err := newGenAIClient(ctx, g.apiKey)
	if err != nil {
		return nil, errors.NewGenerationFailure("failed to create GenAI client", err)
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(text, instruction)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   resultSchema(),
	})
	if err != nil {
		g.logger.Warn("generation request failed",
			zap.String("model", g.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, errors.NewGenerationFailure(fmt.Sprintf("model %s", g.model), err)
	}

	raw := resp.Text()
	g.logger.Debug("generation response",
		zap.String("model", g.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(raw)))

	return ParseResult(raw)
}

// resultSchema constrains the model to the two-report object.
func resultSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"narrative": {
				Type:        genai.TypeString,
				Description: "The Narrative Handover (Human Story) - Candid, story-like, no bullets.",
			},
			"technical": {
				Type:        genai.TypeString,
				Description: "The Technical Manifest (Hard Data) - Structured, high-density, with bullet points.",
			},
		},
		Required: []string{"narrative", "technical"},
	}
}
