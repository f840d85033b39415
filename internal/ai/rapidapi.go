package ai

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
	geminiURL  = "https://gemini-pro-ai.p.rapidapi.com/"
	geminiHost = "gemini-pro-ai.p.rapidapi.com"

	chatGPTURL  = "https://chatgpt-api8.p.rapidapi.com/"
	chatGPTHost = "chatgpt-api8.p.rapidapi.com"

	chatGPTSystemPrompt = "You are a warm, supportive mental-wellness coach. Reply in the user's language."
)

// GeminiClient calls Gemini Pro through RapidAPI.
type GeminiClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewGeminiClient(apiKey string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: geminiURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiMessage `json:"contents"`
}

type geminiMessage struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (c *GeminiClient) Summarize(ctx context.Context, prompt string) (*Reply, error) {
	payload := geminiRequest{Contents: []geminiMessage{
		{Role: "user", Parts: []geminiPart{{Text: prompt}}},
	}}
	body, err := c.post(ctx, c.baseURL, geminiHost, payload)
	if err != nil {
		return nil, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty candidates", ErrMalformed)
	}

	reply := &Reply{
		Text:     parsed.Candidates[0].Content.Parts[0].Text,
		Provider: c.Name(),
	}
	if u := parsed.UsageMetadata; u != nil {
		reply.PromptTokens = u.PromptTokenCount
		reply.ResponseTokens = u.CandidatesTokenCount
		reply.TotalTokens = u.TotalTokenCount
	} else {
		reply.PromptTokens = estimateTokens(prompt)
		reply.ResponseTokens = estimateTokens(reply.Text)
		reply.TotalTokens = reply.PromptTokens + reply.ResponseTokens
	}
	return reply, nil
}

func (c *GeminiClient) post(ctx context.Context, url, host string, payload interface{}) ([]byte, error) {
	return postRapidAPI(ctx, c.http, url, host, c.apiKey, payload)
}

// ChatGPTClient calls the chatgpt-api8 RapidAPI endpoint. Its request body is
// a bare message array and its reply a flat {"text": ...} object.
type ChatGPTClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewChatGPTClient(apiKey string, timeout time.Duration) *ChatGPTClient {
	return &ChatGPTClient{
		apiKey:  apiKey,
		baseURL: chatGPTURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *ChatGPTClient) Name() string { return "chatgpt" }

type chatGPTMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatGPTResponse struct {
	Text string `json:"text"`
}

func (c *ChatGPTClient) Summarize(ctx context.Context, prompt string) (*Reply, error) {
	payload := []chatGPTMessage{
		{Role: "system", Content: chatGPTSystemPrompt},
		{Role: "user", Content: prompt},
	}
	body, err := postRapidAPI(ctx, c.http, c.baseURL, chatGPTHost, c.apiKey, payload)
	if err != nil {
		return nil, err
	}

	var parsed chatGPTResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if parsed.Text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrMalformed)
	}

	return &Reply{
		Text:           parsed.Text,
		Provider:       c.Name(),
		PromptTokens:   estimateTokens(prompt),
		ResponseTokens: estimateTokens(parsed.Text),
		TotalTokens:    estimateTokens(prompt) + estimateTokens(parsed.Text),
	}, nil
}

func postRapidAPI(ctx context.Context, client *http.Client, url, host, apiKey string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rapidapi-key", apiKey)
	req.Header.Set("x-rapidapi-host", host)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return body, nil
}
