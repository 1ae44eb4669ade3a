package vision

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	geminiModel    = "gemini-2.0-flash"
	geminiProvider = "Google Gemini 2.0 Flash"
)

// GeminiAnalyzer identifies currency in images using Google's Gemini API.
type GeminiAnalyzer struct {
	client *genai.Client
}

// NewGeminiAnalyzer creates a Gemini-based analyzer with the given API key.
func NewGeminiAnalyzer(ctx context.Context, apiKey string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client}, nil
}

// Analyze implements the Analyzer interface using Gemini. The shared base64
// input is decoded here because the genai SDK takes raw bytes for inline
// image data.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, imageB64, mimeType string) ProviderResult {
	sessionID := fmt.Sprintf("gemini-currency-%s", uuid.NewString())

	imageData, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return Failed(geminiProvider, fmt.Errorf("failed to decode image: %w", err))
	}

	parts := []*genai.Part{
		genai.NewPartFromText(userPrompt(geminiProvider)),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("gemini call failed")
		return Failed(geminiProvider, err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return Failed(geminiProvider, fmt.Errorf("no response from Gemini"))
	}

	text := result.Text()
	log.Info().Str("sessionId", sessionID).Str("response", text).Msg("gemini vision response")

	return ParseResponse(geminiProvider, text)
}
