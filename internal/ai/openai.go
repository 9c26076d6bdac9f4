package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
	headers map[string]string
	name    string
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMsg       `json:"messages"`
	Stream         bool                  `json:"stream"`
	Temperature    *float32              `json:"temperature,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, req *Request) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	reqBody := openAIChatRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req),
		Stream:      false,
		Temperature: req.Temperature,
	}
	if req.JSON {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	var out openAIChatResponse
	if err := p.post(ctx, "/chat/completions", reqBody, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	var out openAIEmbedResponse
	if err := p.post(ctx, "/embeddings", openAIEmbedRequest{Model: model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	return out.Data[0].Embedding, nil
}

func (p *openAIProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(raw)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toOpenAIMessages(req *Request) []openAIChatMsg {
	msgs := make([]openAIChatMsg, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openAIChatMsg{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openAIChatMsg{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func newOpenAIProvider(args interface{}) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		name:    "openai",
	}, nil
}

func createOpenAIFactory(args interface{}) (IAIProvider, error) {
	return newOpenAIProvider(args)
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	return newOpenAIProvider(args)
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
