package vision

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

const (
	openaiModel    = "gpt-4o-mini"
	openaiProvider = "OpenAI GPT-4o-mini"
)

// OpenAIAnalyzer identifies currency in images using OpenAI's vision API.
type OpenAIAnalyzer struct {
	client openai.Client
}

// NewOpenAIAnalyzer creates an OpenAI-based analyzer with the given API key.
func NewOpenAIAnalyzer(apiKey string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Analyze implements the Analyzer interface using an OpenAI chat completion.
// A fresh session id is generated per call and passed as the request User
// field so unrelated requests are never conflated provider-side.
func (o *OpenAIAnalyzer) Analyze(ctx context.Context, imageB64, mimeType string) ProviderResult {
	sessionID := fmt.Sprintf("openai-currency-%s", uuid.NewString())
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, imageB64)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openaiModel,
		User:  openai.String(sessionID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt(openaiProvider)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("openai call failed")
		return Failed(openaiProvider, err)
	}

	if len(resp.Choices) == 0 {
		return Failed(openaiProvider, fmt.Errorf("no response from OpenAI"))
	}

	text := resp.Choices[0].Message.Content
	log.Info().Str("sessionId", sessionID).Str("response", text).Msg("openai vision response")

	return ParseResponse(openaiProvider, text)
}
