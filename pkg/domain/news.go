package domain

import (
	"encoding/json"
	"fmt"
)

// NewsStory is a scraped news item. Scraping happens upstream; the pipeline
// only consumes stories and derives sentiment signals from them.
type NewsStory struct {
	Outlet      string `json:"outlet"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Timestamp   int64  `json:"timestamp"` // unix millis
}

// Sentiment is the direction of a sentiment signal.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
)

// Encoded maps the sentiment to the integer the feature store receives:
// +1 for bullish, -1 for bearish.
func (s Sentiment) Encoded() int {
	if s == SentimentBullish {
		return 1
	}
	return -1
}

// SentimentSignal is the per-asset result of analyzing one news story.
type SentimentSignal struct {
	Asset     string    `json:"asset"`
	Sentiment Sentiment `json:"sentiment_label"`
	Score     int       `json:"sentiment"`
	Story     string    `json:"story"`
	Model     string    `json:"llm_model,omitempty"`
	Timestamp int64     `json:"timestamp"` // unix millis
}

// ParseNewsStory decodes a story payload from the bus.
func ParseNewsStory(data []byte) (NewsStory, error) {
	var s NewsStory
	if err := json.Unmarshal(data, &s); err != nil {
		return NewsStory{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if s.Title == "" {
		return NewsStory{}, fmt.Errorf("%w: news story missing title", ErrMalformedRecord)
	}
	return s, nil
}

// Encode serializes the signal for the bus.
func (s SentimentSignal) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Flatten renders the signal as a flat field map for the feature mapper,
// carrying the same fields the bus encoding does.
func (s SentimentSignal) Flatten() map[string]any {
	return map[string]any{
		"asset":           s.Asset,
		"sentiment_label": string(s.Sentiment),
		"sentiment":       s.Score,
		"story":           s.Story,
		"llm_model":       s.Model,
		"timestamp":       s.Timestamp,
	}
}
