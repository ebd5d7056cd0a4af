package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// Groq speaks the OpenAI chat-completions wire format on its own host.
const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

type groqConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type groqProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func (p *groqProvider) Name() string {
	return "groq"
}

func (p *groqProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	reqBody := openAIChatRequest{
		Model:    model,
		Messages: []openAIChatMsg{{Role: "user", Content: prompt}},
		Stream:   false,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", transportError(p.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", statusError(p.Name(), resp.StatusCode, string(body))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureOther, Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureOther, Err: errors.New("response has no choices")}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func createGroqFactory(args interface{}) (IGenerateProvider, error) {
	cfg := &groqConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &groqProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURLOrDefault(cfg.BaseURL, defaultGroqBaseURL),
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func init() {
	Register("groq", createGroqFactory)
}
