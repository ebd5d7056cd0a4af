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

// Ollama serves local models; it is the terminal fallback that needs no API
// key, only a reachable daemon.
const defaultOllamaBaseURL = "http://localhost:11434"

type ollamaConfig struct {
	BaseURL string `json:"base_url"`
}

type ollamaProvider struct {
	baseURL string
	client  *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	data, err := json.Marshal(ollamaGenerateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
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
	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProviderError{Provider: p.Name(), Kind: FailureOther, Err: err}
	}
	return strings.TrimSpace(out.Response), nil
}

type ollamaEmbedProvider struct {
	baseURL string
	client  *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *ollamaEmbedProvider) Name() string {
	return "ollama"
}

// Embed issues one request per text; the Ollama embeddings endpoint takes a
// single prompt at a time.
func (p *ollamaEmbedProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	endpoint := strings.TrimRight(p.baseURL, "/") + "/api/embeddings"
	for _, text := range texts {
		data, err := json.Marshal(ollamaEmbedRequest{Model: model, Prompt: text})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, transportError(p.Name(), err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return nil, statusError(p.Name(), resp.StatusCode, string(body))
		}
		var out ollamaEmbedResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, &ProviderError{Provider: p.Name(), Kind: FailureOther, Err: err}
		}
		if len(out.Embedding) == 0 {
			return nil, &ProviderError{Provider: p.Name(), Kind: FailureOther, Err: errors.New("empty embedding in response")}
		}
		vectors = append(vectors, out.Embedding)
	}
	return vectors, nil
}

func createOllamaFactory(args interface{}) (IGenerateProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &ollamaProvider{
		baseURL: baseURLOrDefault(cfg.BaseURL, defaultOllamaBaseURL),
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func createOllamaEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &ollamaEmbedProvider{
		baseURL: baseURLOrDefault(cfg.BaseURL, defaultOllamaBaseURL),
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func init() {
	Register("ollama", createOllamaFactory)
	RegisterEmbed("ollama", createOllamaEmbedFactory)
}
