// Package signals derives per-asset sentiment signals from news stories.
package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"featuremill/pkg/domain"
)

// Analyzer maps one news story to zero or more asset sentiment signals.
type Analyzer interface {
	Analyze(ctx context.Context, story domain.NewsStory) ([]domain.SentimentSignal, error)
}

// ErrEmptyCompletion marks a model response with no usable content.
var ErrEmptyCompletion = errors.New("signals: empty completion")

const analyzePrompt = `You are a financial news analyst. For the news story below,
list every crypto asset whose price the story plausibly moves, and whether the
impact is BULLISH (price expected up) or BEARISH (price expected down). Skip
assets the story does not affect.

Story: %s`

// sentimentSchema constrains the model output to the shape storyAnalysis
// decodes. Kept in lockstep with that struct.
var sentimentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"asset_sentiments": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"asset":     map[string]any{"type": "string"},
					"sentiment": map[string]any{"type": "string", "enum": []string{"BULLISH", "BEARISH"}},
				},
				"required":             []string{"asset", "sentiment"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"asset_sentiments"},
	"additionalProperties": false,
}

type storyAnalysis struct {
	AssetSentiments []struct {
		Asset     string `json:"asset"`
		Sentiment string `json:"sentiment"`
	} `json:"asset_sentiments"`
}

// OpenAIAnalyzer calls a chat-completions endpoint with a JSON-schema
// response format and bounded retries.
type OpenAIAnalyzer struct {
	client  openai.Client
	model   string
	retries int
	backoff time.Duration
}

// NewOpenAIAnalyzer builds an analyzer against the configured endpoint.
func NewOpenAIAnalyzer(cfg *Config) *OpenAIAnalyzer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIAnalyzer{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		retries: cfg.MaxRetries,
		backoff: cfg.RetryBackoff,
	}
}

var _ Analyzer = (*OpenAIAnalyzer)(nil)

// Analyze asks the model for per-asset sentiment and unwinds the result
// into one signal per asset.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, story domain.NewsStory) ([]domain.SentimentSignal, error) {
	schemaParam := shared.ResponseFormatJSONSchemaParam{
		JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   "asset_sentiments",
			Schema: sentimentSchema,
			Strict: openai.Bool(true),
		},
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(analyzePrompt, story.Title)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &schemaParam,
		},
	}

	var completion *openai.ChatCompletion
	var err error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.backoff * time.Duration(attempt)):
			}
		}
		completion, err = a.client.Chat.Completions.New(ctx, params)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("signals: completion after %d attempts: %w", a.retries+1, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, ErrEmptyCompletion
	}

	var analysis storyAnalysis
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &analysis); err != nil {
		return nil, fmt.Errorf("signals: decode completion: %w", err)
	}
	return unwind(analysis, story, a.model), nil
}

func unwind(analysis storyAnalysis, story domain.NewsStory, model string) []domain.SentimentSignal {
	out := make([]domain.SentimentSignal, 0, len(analysis.AssetSentiments))
	for _, as := range analysis.AssetSentiments {
		sentiment := domain.Sentiment(as.Sentiment)
		if sentiment != domain.SentimentBullish && sentiment != domain.SentimentBearish {
			continue
		}
		out = append(out, domain.SentimentSignal{
			Asset:     as.Asset,
			Sentiment: sentiment,
			Score:     sentiment.Encoded(),
			Story:     story.Title,
			Model:     model,
			Timestamp: story.Timestamp,
		})
	}
	return out
}

// StubAnalyzer is a deterministic keyword analyzer used in tests and when
// no LLM endpoint is configured.
type StubAnalyzer struct {
	Assets []string
}

var _ Analyzer = (*StubAnalyzer)(nil)

var bearishWords = []string{"crash", "hack", "exploit", "plunge", "sell-off", "ban", "lawsuit", "drop"}

// Analyze tags each known asset mentioned in the title, bearish when a
// negative keyword appears, bullish otherwise.
func (s *StubAnalyzer) Analyze(_ context.Context, story domain.NewsStory) ([]domain.SentimentSignal, error) {
	title := strings.ToLower(story.Title)
	sentiment := domain.SentimentBullish
	for _, word := range bearishWords {
		if strings.Contains(title, word) {
			sentiment = domain.SentimentBearish
			break
		}
	}

	var out []domain.SentimentSignal
	for _, asset := range s.Assets {
		if !strings.Contains(title, strings.ToLower(asset)) {
			continue
		}
		out = append(out, domain.SentimentSignal{
			Asset:     asset,
			Sentiment: sentiment,
			Score:     sentiment.Encoded(),
			Story:     story.Title,
			Model:     "stub",
			Timestamp: story.Timestamp,
		})
	}
	return out, nil
}
