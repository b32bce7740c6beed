package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	classifierTimeout = 12 * time.Second
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4"
)

const classifierSystemPrompt = `You are a civic issue validator for a municipal reporting service. You MUST respond with ONLY valid JSON. No markdown formatting, no code blocks, no explanations - just pure JSON.`

const classifierPromptTemplate = `Analyze this civic issue report and respond with ONLY a valid JSON object.

ISSUE:
Title: %q
Description: %q
Category: %q

You must respond with EXACTLY this JSON format (no markdown, no additional text, no explanations):
{
  "isValid": true,
  "confidence": 85,
  "reason": "Valid infrastructure issue requiring municipal action",
  "suggestedCategory": "pothole"
}

VALIDATION RULES:
- Valid: Real infrastructure problems needing municipal action (potholes, broken streetlights, graffiti, garbage, damaged roads, broken benches, etc.)
- Invalid: Spam, tests (like "test", "asdf", "123"), personal complaints, non-municipal issues, nonsense
- Minimum confidence 70 for valid issues
- Check if description has actionable details for city workers
- suggestedCategory must be one of: pothole, streetlight, graffiti, garbage, other`

// OpenAIClassifier calls an OpenAI-style chat-completions endpoint with a
// fixed prompt contract and returns the raw response text. The collaborator
// is treated as unreliable end to end; all parsing lives in the Validator.
type OpenAIClassifier struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewOpenAIClassifier(apiKey, baseURL string) *OpenAIClassifier {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIClassifier{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Model:      defaultModel,
		HTTPClient: &http.Client{Timeout: classifierTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClassifier) Classify(ctx context.Context, title, description, category string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(classifierPromptTemplate, title, description, category)},
		},
		MaxTokens:   150,
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read classifier response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("classifier returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
