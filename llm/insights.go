// Package llm is a thin client for the OpenAI chat-completions API used to
// generate plain-language financial insights.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finwise/api/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

const systemPrompt = "You are a personal finance assistant. Given a summary of a user's recent " +
	"transactions, produce three short, actionable insights about their spending. " +
	"Be concrete and neutral; do not give investment advice."

// Client calls the OpenAI chat-completions endpoint. Construct one in main
// and inject it; the zero value is not usable.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      "gpt-4o-mini",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a different endpoint. Tests use this to
// target an httptest server.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateInsights summarizes the user's recent transactions through the
// completion API. The transaction list is flattened to a compact text table
// before leaving the process; no account ids or user ids are sent.
func (c *Client) GenerateInsights(ctx context.Context, txns []models.Transaction) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		MaxTokens:   400,
		Temperature: 0.4,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: summarize(txns)},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API returned status %d", resp.StatusCode)
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion API returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

func summarize(txns []models.Transaction) string {
	var b strings.Builder
	b.WriteString("Recent transactions (date, amount, category, description):\n")
	for _, t := range txns {
		fmt.Fprintf(&b, "%s, %.2f, %s, %s\n",
			t.OccurredAt.Format("2006-01-02"), t.Amount, t.Category, t.Description)
	}
	return b.String()
}
