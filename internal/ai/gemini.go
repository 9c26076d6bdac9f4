package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiProvider struct {
	apiKey string
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) client(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *geminiProvider) Generate(ctx context.Context, model string, req *Request) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	config := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *geminiProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	var config *genai.EmbedContentConfig
	if taskType != "" {
		config = &genai.EmbedContentConfig{
			TaskType: taskType,
		}
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func newGeminiProvider(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiProvider{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func createGeminiFactory(args interface{}) (IAIProvider, error) {
	return newGeminiProvider(args)
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	return newGeminiProvider(args)
}

func init() {
	Register("gemini", createGeminiFactory)
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
