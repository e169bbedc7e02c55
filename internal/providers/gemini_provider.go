package providers

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"google.golang.org/genai"
)

type geminiStreamFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

type geminiModel struct {
	model  string
	stream geminiStreamFunc
}

func NewGeminiModel(ctx context.Context, apiKey, model string) (ImageModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ConfigurationError("gemini", "GOOGLE_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "gemini", "client init failed", err)
	}
	return &geminiModel{model: model, stream: client.Models.GenerateContentStream}, nil
}

func (g *geminiModel) Label() string {
	switch g.model {
	case "gemini-2.5-flash-image", "gemini-2.5-flash-image-preview":
		return "Gemini 2.5 Flash Image"
	}
	return "Gemini " + g.model
}

func (g *geminiModel) GenerateStream(ctx context.Context, prompt string) iter.Seq2[domain.Chunk, error] {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		Temperature:        genai.Ptr[float32](1.0),
	}
	return func(yield func(domain.Chunk, error) bool) {
		for resp, err := range g.stream(ctx, g.model, genai.Text(prompt), cfg) {
			if err != nil {
				yield(domain.Chunk{}, domain.TransportError("gemini.GenerateContentStream", err, ""))
				return
			}
			if resp == nil {
				continue
			}
			for _, cand := range resp.Candidates {
				if cand == nil || cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					chunk, ok := chunkFromPart(part)
					if !ok {
						continue
					}
					if !yield(chunk, nil) {
						return
					}
				}
			}
		}
	}
}

func chunkFromPart(part *genai.Part) (domain.Chunk, bool) {
	if part == nil {
		return domain.Chunk{}, false
	}
	if part.InlineData != nil && len(part.InlineData.Data) > 0 {
		return domain.Chunk{Data: part.InlineData.Data, MimeType: part.InlineData.MIMEType}, true
	}
	if part.Text != "" {
		return domain.Chunk{Text: part.Text}, true
	}
	return domain.Chunk{}, false
}

func (g *geminiModel) String() string { return fmt.Sprintf("gemini(%s)", g.model) }
